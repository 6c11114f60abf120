package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/genburn/internal/raster"
)

func TestObject_Features(t *testing.T) {
	o := &Object{JoinKey: 1}
	_, ok := o.Feature("ndvi")
	assert.False(t, ok)

	o.SetFeature("ndvi", 0.4)
	v, ok := o.Feature("ndvi")
	assert.True(t, ok)
	assert.Equal(t, 0.4, v)
}

func TestObject_SetLabelOnce(t *testing.T) {
	o := &Object{JoinKey: 7}
	require.NoError(t, o.SetLabel(Tree))
	assert.Error(t, o.SetLabel(Grass))
	assert.Equal(t, Tree, o.Label)
}

func TestLabelBranch(t *testing.T) {
	assert.Equal(t, Vegetation, Shrub.Branch())
	assert.Equal(t, Impervious, Building.Branch())
	assert.Equal(t, Unassigned, NoLabel.Branch())

	l, err := ParseLabel("path")
	require.NoError(t, err)
	assert.Equal(t, Path, l)
	_, err = ParseLabel("lava")
	assert.Error(t, err)
}

func TestCollection_ValidateKeys(t *testing.T) {
	assert.NoError(t, Collection{{JoinKey: 1}, {JoinKey: 2}}.ValidateKeys())
	assert.Error(t, Collection{{JoinKey: 1}, {JoinKey: 1}}.ValidateKeys())
	assert.Error(t, Collection{{JoinKey: 0}}.ValidateKeys())

	zoned := Collection{{Zone: "zone_0", JoinKey: 1}, {Zone: "zone_1", JoinKey: 1}}
	assert.NoError(t, zoned.ValidateZoneKeys())
	assert.Error(t, zoned.ValidateKeys())
	assert.Error(t, append(zoned, &Object{Zone: "zone_1", JoinKey: 1}).ValidateZoneKeys())
	assert.Error(t, Collection{{Zone: "zone_0"}}.ValidateZoneKeys())
}

func TestCollection_RekeyAndFilters(t *testing.T) {
	c := Collection{
		{JoinKey: 10, Primitive: Vegetation, Label: Grass},
		{JoinKey: 4, Primitive: Confusion},
		{JoinKey: 6, Primitive: Vegetation},
	}
	assert.Len(t, c.WithPrimitive(Vegetation), 2)
	assert.Len(t, c.Unlabelled(), 2)
	assert.Equal(t, map[Label]int{Grass: 1, NoLabel: 2}, c.LabelCounts())

	c.SortByKey()
	assert.Equal(t, []int{4, 6, 10}, c.Keys())

	c.Rekey()
	assert.Equal(t, []int{1, 2, 3}, c.Keys())
	assert.Contains(t, c.ByKey(), 3)
}

func TestZone_Validate(t *testing.T) {
	g := func() *raster.Grid { return raster.New(2, 2, 0, 2, 1) }
	z := &Zone{ID: "zone_0", Bands: Bands{Blue: g(), Green: g(), Red: g(), NIR: g()}, Height: g()}
	assert.NoError(t, z.Validate())

	z.Height = raster.New(3, 2, 0, 2, 1)
	assert.ErrorIs(t, z.Validate(), raster.ErrShapeMismatch)

	z.Height = nil
	assert.Error(t, z.Validate())

	z.Bands.NIR = nil
	assert.Error(t, z.Validate())
}
