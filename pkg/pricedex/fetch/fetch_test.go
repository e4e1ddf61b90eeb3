package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
)

const sampleCSV = "Code,Article,Price\nA1,Widget,100\n"

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return &Fetcher{
		URL:        srv.URL + "/data/products.csv",
		Cache:      &Cache{Dir: filepath.Join(t.TempDir(), "cache")},
		HTTPClient: srv.Client(),
	}, &hits
}

func serveCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(sampleCSV))
}

func TestNetworkFetchPopulatesCache(t *testing.T) {
	ctx := context.Background()
	f, hits := newTestFetcher(t, serveCSV)

	ds, err := f.FetchDataset(ctx)
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if ds.Provenance != ProvenanceNetwork {
		t.Errorf("provenance = %q, want network", ds.Provenance)
	}
	if ds.Text != sampleCSV {
		t.Errorf("wrong text: %q", ds.Text)
	}

	// Second fetch must be served from cache without a network call
	ds, err = f.FetchDataset(ctx)
	if err != nil {
		t.Fatalf("second FetchDataset: %v", err)
	}
	if ds.Provenance != ProvenanceCache {
		t.Errorf("provenance = %q, want cache", ds.Provenance)
	}
	if hits.Load() != 1 {
		t.Errorf("network hit %d times, want 1", hits.Load())
	}
}

func TestPurgeCacheForcesNetwork(t *testing.T) {
	ctx := context.Background()
	f, hits := newTestFetcher(t, serveCSV)

	f.FetchDataset(ctx)
	if err := f.PurgeCache(); err != nil {
		t.Fatalf("PurgeCache: %v", err)
	}

	ds, err := f.FetchDataset(ctx)
	if err != nil {
		t.Fatalf("FetchDataset after purge: %v", err)
	}
	if ds.Provenance != ProvenanceNetwork {
		t.Errorf("provenance = %q, want network after purge", ds.Provenance)
	}
	if hits.Load() != 2 {
		t.Errorf("network hit %d times, want 2", hits.Load())
	}

	// Purging again with nothing cached is a no-op
	f.PurgeCache()
	if err := f.PurgeCache(); err != nil {
		t.Errorf("repeated purge errored: %v", err)
	}
}

func TestNonSuccessStatusFails(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	_, err := f.FetchDataset(ctx)
	if err == nil {
		t.Fatal("expected an error for HTTP 404")
	}
	if !errors.Is(err, internalerr.ErrDatasetUnavailable) {
		t.Errorf("error should wrap ErrDatasetUnavailable, got %v", err)
	}
}

func TestUnreachableHostFails(t *testing.T) {
	ctx := context.Background()
	f := &Fetcher{
		URL:   "http://127.0.0.1:1/products.csv",
		Cache: &Cache{Dir: t.TempDir()},
	}

	_, err := f.FetchDataset(ctx)
	if !errors.Is(err, internalerr.ErrDatasetUnavailable) {
		t.Errorf("error should wrap ErrDatasetUnavailable, got %v", err)
	}
}

func TestHTMLBodyRejected(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<!DOCTYPE html><html><body>Please log in</body></html>"))
	})

	_, err := f.FetchDataset(ctx)
	if !errors.Is(err, internalerr.ErrDatasetUnavailable) {
		t.Errorf("an HTML page is not a dataset, got err=%v", err)
	}
}

func TestCSVWithAngleBracketAccepted(t *testing.T) {
	ctx := context.Background()
	csv := "Code,Article\nA1,<oddly named widget>\n"
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	})

	ds, err := f.FetchDataset(ctx)
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if ds.Text != csv {
		t.Errorf("text altered: %q", ds.Text)
	}
}

func TestCacheWriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, serveCSV)

	// Point the cache dir at an existing file so MkdirAll fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	f.Cache = &Cache{Dir: blocker}

	ds, err := f.FetchDataset(ctx)
	if err != nil {
		t.Fatalf("fetch should succeed despite cache-write failure: %v", err)
	}
	if ds.Provenance != ProvenanceNetwork || ds.Text != sampleCSV {
		t.Errorf("unexpected dataset: %+v", ds)
	}
}

func TestCacheBypassHeadersSent(t *testing.T) {
	ctx := context.Background()
	var gotCacheControl string
	f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl = r.Header.Get("Cache-Control")
		serveCSV(w, r)
	})

	if _, err := f.FetchDataset(ctx); err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if gotCacheControl != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", gotCacheControl)
	}
}

type phaseRecorder struct {
	phases []string
}

func (p *phaseRecorder) CheckingCache() { p.phases = append(p.phases, "cache") }
func (p *phaseRecorder) Downloading()   { p.phases = append(p.phases, "download") }

func TestProgressPhases(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, serveCSV)

	rec := &phaseRecorder{}
	f.Progress = rec

	f.FetchDataset(ctx)
	if len(rec.phases) != 2 || rec.phases[0] != "cache" || rec.phases[1] != "download" {
		t.Errorf("first fetch phases = %v", rec.phases)
	}

	rec.phases = nil
	f.FetchDataset(ctx)
	if len(rec.phases) != 1 || rec.phases[0] != "cache" {
		t.Errorf("cached fetch phases = %v", rec.phases)
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"/data/products.csv": "data_products.csv",
		"products.csv":       "products.csv",
		"":                   "dataset",
		"/":                  "dataset",
		"a b/c":              "a_b_c",
	}
	for in, want := range cases {
		if got := sanitizeKey(in); got != want {
			t.Errorf("sanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
