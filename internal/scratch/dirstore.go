package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/genburn/internal/fsutil"
	"github.com/banshee-data/genburn/internal/raster"
)

// DirStore keeps each layer as an ESRI ASCII grid under a workspace
// directory, one subdirectory per zone. Files are named
// "<layer>@<resolution>.asc".
type DirStore struct {
	FS   fsutil.FileSystem
	Root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(fsys fsutil.FileSystem, dir string) *DirStore {
	return &DirStore{FS: fsys, Root: dir}
}

func (d *DirStore) path(k Key) string {
	name := strings.TrimPrefix(k.String(), k.Zone+"/")
	return filepath.Join(d.Root, k.Zone, name+".asc")
}

func (d *DirStore) Get(k Key) (*raster.Grid, error) {
	f, err := d.FS.Open(d.path(k))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()
	g, err := raster.ReadASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return g, nil
}

func (d *DirStore) Put(k Key, g *raster.Grid) error {
	if err := d.FS.MkdirAll(filepath.Join(d.Root, k.Zone), 0o755); err != nil {
		return err
	}
	w, err := d.FS.Create(d.path(k))
	if err != nil {
		return err
	}
	if err := raster.WriteASCII(w, g); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", k, err)
	}
	return w.Close()
}

func (d *DirStore) Keys(zone string) ([]Key, error) {
	names, err := d.FS.List(d.Root)
	if err != nil {
		return nil, err
	}
	var keys []Key
	for _, name := range names {
		rel, err := filepath.Rel(d.Root, name)
		if err != nil || !strings.HasSuffix(rel, ".asc") {
			continue
		}
		k, err := ParseKey(filepath.ToSlash(strings.TrimSuffix(rel, ".asc")))
		if err != nil {
			continue
		}
		if zone == "" || k.Zone == zone {
			keys = append(keys, k)
		}
	}
	SortKeys(keys)
	return keys, nil
}
