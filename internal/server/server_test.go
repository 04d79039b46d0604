package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hometownmap/parcelpipe/internal/metrics"
)

const testBody = `{"type":"FeatureCollection","features":[]}`

func writeDataset(t *testing.T, dataDir, city, name, body string) string {
	t.Helper()
	dir := filepath.Join(dataDir, "cities", city, "processed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name+".geojson")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func newTestRouter(t *testing.T, dataDir string) http.Handler {
	t.Helper()
	store, err := NewStore(dataDir, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewRouter(zerolog.Nop(), store, metrics.Init(metrics.BuildInfo{Version: "test"}))
}

func TestHandleDataset_ServesGeoJSON(t *testing.T) {
	dataDir := t.TempDir()
	writeDataset(t, dataDir, "three-forks", "parcels", testBody)
	h := newTestRouter(t, dataDir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datasets/three-forks/parcels", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatal("missing ETag")
	}
	if rec.Body.String() != testBody {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHandleDataset_NotModified(t *testing.T) {
	dataDir := t.TempDir()
	writeDataset(t, dataDir, "three-forks", "parcels", testBody)
	h := newTestRouter(t, dataDir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/datasets/three-forks/parcels", nil))
	etag := rec.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/datasets/three-forks/parcels", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("304 carried a body: %q", rec.Body.String())
	}
}

func TestHandleDataset_NotFound(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	for _, path := range []string{
		"/datasets/three-forks/parcels",
		"/datasets/..%2F..%2Fetc/passwd",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestStore_CacheOutcomes(t *testing.T) {
	dataDir := t.TempDir()
	path := writeDataset(t, dataDir, "three-forks", "parcels", testBody)
	store, err := NewStore(dataDir, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, outcome, err := store.Get("three-forks", "parcels"); err != nil || outcome != OutcomeMiss {
		t.Fatalf("first Get = %v outcome %s, want miss", err, outcome)
	}
	if _, outcome, err := store.Get("three-forks", "parcels"); err != nil || outcome != OutcomeHit {
		t.Fatalf("second Get = %v outcome %s, want hit", err, outcome)
	}

	// Touch the file with a newer mtime so the cached copy goes stale.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, outcome, err := store.Get("three-forks", "parcels"); err != nil || outcome != OutcomeStale {
		t.Fatalf("third Get = %v outcome %s, want stale", err, outcome)
	}
}

func TestStore_ETagChangesWithContent(t *testing.T) {
	dataDir := t.TempDir()
	path := writeDataset(t, dataDir, "three-forks", "parcels", testBody)
	store, err := NewStore(dataDir, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	d1, _, err := store.Get("three-forks", "parcels")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[null]}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	d2, _, err := store.Get("three-forks", "parcels")
	if err != nil {
		t.Fatalf("Get after rewrite: %v", err)
	}
	if d1.ETag == d2.ETag {
		t.Fatalf("ETag unchanged across content change: %s", d1.ETag)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t, t.TempDir())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	store, err := NewStore(filepath.Join(t.TempDir(), "missing"), 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec = httptest.NewRecorder()
	readiness(store)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with missing data dir = %d, want 503", rec.Code)
	}
}

func TestSafeSegment(t *testing.T) {
	good := []string{"three-forks", "parcels", "parcels_merged", "A1"}
	for _, s := range good {
		if !safeSegment(s) {
			t.Fatalf("safeSegment(%q) = false", s)
		}
	}
	bad := []string{"", ".", "..", "a/b", "a\\b", "-flag", "a.geojson"}
	for _, s := range bad {
		if safeSegment(s) {
			t.Fatalf("safeSegment(%q) = true", s)
		}
	}
}
