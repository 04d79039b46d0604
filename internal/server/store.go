// Package server serves processed parcel datasets over HTTP for the
// map front end.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound means no dataset file exists for the city/name pair.
var ErrNotFound = errors.New("dataset not found")

// Dataset is one cached GeoJSON file ready to serve.
type Dataset struct {
	Body    []byte
	ETag    string
	ModTime time.Time
}

// Outcome classifies a store lookup for the cache metrics.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeStale Outcome = "stale"
)

// Store caches dataset files from the processed data directory.
// Entries are invalidated when the file on disk has a newer mtime, so
// pipeline re-runs show up without a restart.
type Store struct {
	dataDir string

	mu    sync.Mutex
	cache *lru.Cache[string, *Dataset]
}

func NewStore(dataDir string, cacheSize int) (*Store, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	c, err := lru.New[string, *Dataset](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("dataset cache: %w", err)
	}
	return &Store{dataDir: dataDir, cache: c}, nil
}

// Get returns the dataset for a city/name pair, loading from disk on a
// miss or when the cached copy is stale.
func (s *Store) Get(city, name string) (*Dataset, Outcome, error) {
	path, err := s.datasetPath(city, name)
	if err != nil {
		return nil, OutcomeMiss, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, OutcomeMiss, fmt.Errorf("%w: %s/%s", ErrNotFound, city, name)
		}
		return nil, OutcomeMiss, fmt.Errorf("stat %s: %w", path, err)
	}

	key := city + "/" + name
	outcome := OutcomeMiss

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.cache.Get(key); ok {
		if d.ModTime.Equal(info.ModTime()) {
			return d, OutcomeHit, nil
		}
		outcome = OutcomeStale
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, outcome, fmt.Errorf("read %s: %w", path, err)
	}
	d := &Dataset{
		Body:    body,
		ETag:    fmt.Sprintf("%q", fmt.Sprintf("%016x", xxhash.Sum64(body))),
		ModTime: info.ModTime(),
	}
	s.cache.Add(key, d)
	return d, outcome, nil
}

// Ready reports whether the data directory is readable. Used by the
// readiness probe.
func (s *Store) Ready() bool {
	info, err := os.Stat(s.dataDir)
	return err == nil && info.IsDir()
}

// datasetPath maps a city/name pair onto the processed data layout.
// Both parts are validated so a request cannot escape the data dir.
func (s *Store) datasetPath(city, name string) (string, error) {
	if !safeSegment(city) || !safeSegment(name) {
		return "", fmt.Errorf("%w: invalid dataset path", ErrNotFound)
	}
	return filepath.Join(s.dataDir, "cities", city, "processed", name+".geojson"), nil
}

func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, "-")
}
