package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/genburn/internal/apperr"
	"github.com/banshee-data/genburn/internal/objects"
)

// ObjectStore persists the classified collection of a run and its
// unresolved report.
type ObjectStore struct {
	db *sql.DB
}

// NewObjectStore creates a new ObjectStore.
func NewObjectStore(db *sql.DB) *ObjectStore {
	return &ObjectStore{db: db}
}

// Save replaces the run's objects with objs, preserving their order.
func (s *ObjectStore) Save(runID string, objs objects.Collection) error {
	rows := make([][]interface{}, len(objs))
	for i, o := range objs {
		geom, err := json.Marshal(geojson.NewGeometry(o.Footprint))
		if err != nil {
			return fmt.Errorf("object %s/%d: geometry: %w", o.Zone, o.JoinKey, err)
		}
		rows[i] = []interface{}{
			runID, o.Zone, o.JoinKey, string(o.Surface), string(o.Primitive), string(o.Label),
			o.Fueled, o.FuelCode, o.CanopyCode, o.StandHeight,
			jsonOrNil(o.Features), jsonOrNil(o.Burn), string(geom),
		}
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM objects WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear objects: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO objects (
				run_id, zone, join_key, surface, primitive, label,
				fueled, fuel_code, canopy_code, stand_height,
				features_json, burn_json, geometry
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.Exec(r...); err != nil {
				return fmt.Errorf("insert object %v/%v: %w", r[1], r[2], err)
			}
		}
		return tx.Commit()
	})
}

// Load returns the run's objects in the order they were saved.
func (s *ObjectStore) Load(runID string) (objects.Collection, error) {
	rows, err := s.db.Query(`
		SELECT zone, join_key, surface, primitive, label,
		       fueled, fuel_code, canopy_code, stand_height,
		       features_json, burn_json, geometry
		FROM objects WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var out objects.Collection
	for rows.Next() {
		var (
			o                    objects.Object
			surface, prim, label string
			features, burn       sql.NullString
			geom                 string
		)
		if err := rows.Scan(&o.Zone, &o.JoinKey, &surface, &prim, &label,
			&o.Fueled, &o.FuelCode, &o.CanopyCode, &o.StandHeight,
			&features, &burn, &geom); err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		o.Surface = objects.Surface(surface)
		o.Primitive = objects.Primitive(prim)
		o.Label = objects.Label(label)
		if err := unmarshalNull(features, &o.Features); err != nil {
			return nil, fmt.Errorf("object %s/%d features: %w", o.Zone, o.JoinKey, err)
		}
		if err := unmarshalNull(burn, &o.Burn); err != nil {
			return nil, fmt.Errorf("object %s/%d burn: %w", o.Zone, o.JoinKey, err)
		}
		if o.Footprint, err = decodeFootprint([]byte(geom)); err != nil {
			return nil, fmt.Errorf("object %s/%d geometry: %w", o.Zone, o.JoinKey, err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SaveUnresolved replaces the run's unresolved report.
func (s *ObjectStore) SaveUnresolved(runID string, objs []apperr.UnresolvedObject) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM unresolved_objects WHERE run_id = ?`, runID); err != nil {
			return err
		}
		for _, u := range objs {
			if _, err := tx.Exec(`
				INSERT INTO unresolved_objects (run_id, zone, join_key, branch, reason)
				VALUES (?, ?, ?, ?, ?)`, runID, u.Zone, u.JoinKey, u.Branch, u.Reason); err != nil {
				return fmt.Errorf("insert unresolved %s/%d: %w", u.Zone, u.JoinKey, err)
			}
		}
		return tx.Commit()
	})
}

// Unresolved returns the run's unresolved report ordered by zone and key.
func (s *ObjectStore) Unresolved(runID string) ([]apperr.UnresolvedObject, error) {
	rows, err := s.db.Query(`
		SELECT zone, join_key, branch, reason FROM unresolved_objects
		WHERE run_id = ? ORDER BY zone, join_key`, runID)
	if err != nil {
		return nil, fmt.Errorf("query unresolved: %w", err)
	}
	defer rows.Close()

	var out []apperr.UnresolvedObject
	for rows.Next() {
		var u apperr.UnresolvedObject
		if err := rows.Scan(&u.Zone, &u.JoinKey, &u.Branch, &u.Reason); err != nil {
			return nil, fmt.Errorf("scan unresolved row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LabelCounts returns the number of objects per label for a run.
func (s *ObjectStore) LabelCounts(runID string) (map[objects.Label]int, error) {
	rows, err := s.db.Query(`SELECT label, COUNT(*) FROM objects WHERE run_id = ? GROUP BY label`, runID)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[objects.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[objects.Label(label)] = n
	}
	return counts, rows.Err()
}

func jsonOrNil(m map[string]float64) interface{} {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(b)
}

func unmarshalNull(s sql.NullString, dst *map[string]float64) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func decodeFootprint(b []byte) (orb.MultiPolygon, error) {
	g, err := geojson.UnmarshalGeometry(b)
	if err != nil {
		return nil, err
	}
	switch geom := g.Geometry().(type) {
	case orb.MultiPolygon:
		return geom, nil
	case orb.Polygon:
		return orb.MultiPolygon{geom}, nil
	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.Geometry().GeoJSONType())
	}
}
