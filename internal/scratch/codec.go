package scratch

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/banshee-data/genburn/internal/raster"
)

type gridRecord struct {
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	OriginX  float64   `json:"origin_x"`
	OriginY  float64   `json:"origin_y"`
	CellSize float64   `json:"cell_size"`
	NoData   float64   `json:"nodata"`
	Data     []float64 `json:"data"`
}

// EncodeGrid serialises g as MessagePack.
func EncodeGrid(g *raster.Grid) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	rec := gridRecord{
		Rows: g.Rows, Cols: g.Cols,
		OriginX: g.OriginX, OriginY: g.OriginY,
		CellSize: g.CellSize, NoData: g.NoData,
		Data: g.Data,
	}
	if err := enc.Encode(&rec); err != nil {
		return nil, fmt.Errorf("encode grid: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGrid is the inverse of EncodeGrid.
func DecodeGrid(b []byte) (*raster.Grid, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	var rec gridRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	g := &raster.Grid{
		Rows: rec.Rows, Cols: rec.Cols,
		OriginX: rec.OriginX, OriginY: rec.OriginY,
		CellSize: rec.CellSize, NoData: rec.NoData,
		Data: rec.Data,
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	return g, nil
}
