package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/genburn/internal/raster"
	"github.com/banshee-data/genburn/internal/scratch"
)

// ScratchStore is a scratch.Store backed by the scratch_layers table.
// Rasters are stored as MessagePack blobs.
type ScratchStore struct {
	db *sql.DB
}

var _ scratch.Store = (*ScratchStore)(nil)

// NewScratchStore creates a new ScratchStore.
func NewScratchStore(db *sql.DB) *ScratchStore {
	return &ScratchStore{db: db}
}

func (s *ScratchStore) Get(k scratch.Key) (*raster.Grid, error) {
	var blob []byte
	err := s.db.QueryRow(`
		SELECT data FROM scratch_layers WHERE zone = ? AND layer = ? AND resolution = ?`,
		k.Zone, k.Layer, k.Resolution).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", k, scratch.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return scratch.DecodeGrid(blob)
}

func (s *ScratchStore) Put(k scratch.Key, g *raster.Grid) error {
	if g == nil {
		return fmt.Errorf("%s: nil raster", k)
	}
	blob, err := scratch.EncodeGrid(g)
	if err != nil {
		return err
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO scratch_layers (zone, layer, resolution, data, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (zone, layer, resolution) DO UPDATE SET
				data = excluded.data, created_at = excluded.created_at`,
			k.Zone, k.Layer, k.Resolution, blob, time.Now().UnixNano())
		return err
	})
}

// Keys lists the keys belonging to zone, sorted by their string form. An
// empty zone lists every key.
func (s *ScratchStore) Keys(zone string) ([]scratch.Key, error) {
	rows, err := s.db.Query(`
		SELECT zone, layer, resolution FROM scratch_layers
		WHERE ? = '' OR zone = ?`, zone, zone)
	if err != nil {
		return nil, fmt.Errorf("query scratch keys: %w", err)
	}
	defer rows.Close()

	var keys []scratch.Key
	for rows.Next() {
		var k scratch.Key
		if err := rows.Scan(&k.Zone, &k.Layer, &k.Resolution); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	scratch.SortKeys(keys)
	return keys, nil
}

// Purge removes every layer of zone, or all layers when zone is empty.
func (s *ScratchStore) Purge(zone string) (int64, error) {
	var n int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM scratch_layers WHERE ? = '' OR zone = ?`, zone, zone)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
