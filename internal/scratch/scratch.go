// Package scratch owns the keyed workspace for intermediate rasters.
//
// Every layer is addressed by (zone, layer, resolution). Zones only ever
// write keys carrying their own zone ID, so concurrent zones sharing one
// Store never collide.
package scratch

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/genburn/internal/raster"
)

// ErrNotFound is returned by Get for keys never written.
var ErrNotFound = errors.New("scratch layer not found")

// Key addresses one intermediate layer.
type Key struct {
	Zone       string
	Layer      string
	Resolution float64
}

// String renders the key as "zone/layer@resolution".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Zone, k.Layer, strconv.FormatFloat(k.Resolution, 'f', -1, 64))
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	slash := strings.Index(s, "/")
	at := strings.LastIndex(s, "@")
	if slash <= 0 || at < slash+2 {
		return Key{}, fmt.Errorf("malformed scratch key %q", s)
	}
	res, err := strconv.ParseFloat(s[at+1:], 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed scratch key %q: %w", s, err)
	}
	return Key{Zone: s[:slash], Layer: s[slash+1 : at], Resolution: res}, nil
}

// Store persists intermediate rasters.
type Store interface {
	Get(k Key) (*raster.Grid, error)
	Put(k Key, g *raster.Grid) error
	Keys(zone string) ([]Key, error)
}

// MemoryStore is a goroutine-safe in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	layers map[Key]*raster.Grid
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layers: make(map[Key]*raster.Grid)}
}

func (m *MemoryStore) Get(k Key) (*raster.Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.layers[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	return g, nil
}

func (m *MemoryStore) Put(k Key, g *raster.Grid) error {
	if g == nil {
		return fmt.Errorf("%s: nil raster", k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[k] = g
	return nil
}

// Keys lists the keys belonging to zone, sorted by their string form. An
// empty zone lists every key.
func (m *MemoryStore) Keys(zone string) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []Key
	for k := range m.layers {
		if zone == "" || k.Zone == zone {
			keys = append(keys, k)
		}
	}
	SortKeys(keys)
	return keys, nil
}

// SortKeys orders keys by their string form.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
