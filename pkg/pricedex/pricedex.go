package pricedex

import (
	"context"
	"crypto/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/pricedex/pkg/pricedex/fetch"
	"github.com/cognicore/pricedex/pkg/pricedex/ingest"
	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

// Progress receives discrete phase notifications so a presentation
// layer can show what the engine is doing: searching the cache,
// downloading, then importing N records.
type Progress interface {
	fetch.Progress
	Importing(count int)
}

// Fetcher acquires the raw dataset. *fetch.Fetcher is the production
// implementation.
type Fetcher interface {
	FetchDataset(ctx context.Context) (fetch.Dataset, error)
	PurgeCache() error
}

// Options configures an Engine instance
type Options struct {
	Store    store.Store
	Fetcher  Fetcher
	Logger   *zerolog.Logger
	Progress Progress
}

// Engine is the lookup and import facade. It enforces single-flight:
// at most one lookup, import, or reset may be in flight at a time;
// concurrent calls are rejected with ErrBusy, never queued.
type Engine struct {
	store    store.Store
	fetcher  Fetcher
	logger   zerolog.Logger
	progress Progress
	entropy  *ulid.MonotonicEntropy
	busy     atomic.Bool
}

// ImportReport summarizes one completed dataset import
type ImportReport struct {
	RunID      string
	Provenance fetch.Provenance
	Count      int
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Engine{
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		logger:   logger,
		progress: opts.Progress,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the engine
func (e *Engine) Close() error {
	return e.store.Close()
}

// Busy reports whether an operation is in flight. Presentation layers
// use this to gate input submission.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Lookup resolves a raw query to a record.
//
// The trimmed input is first tried as an exact code in three case
// variants — verbatim, upper, lower — then falls back to a substring
// scan over article text, returning the first match in scan order.
// The boolean is false when nothing matched; that is a normal outcome,
// not an error. A store error during one phase is recovered locally
// and the remaining phases still run.
func (e *Engine) Lookup(ctx context.Context, raw string) (store.Record, bool, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return store.Record{}, false, internalerr.ErrBusy
	}
	defer e.busy.Store(false)

	query := strings.TrimSpace(raw)
	if query == "" {
		return store.Record{}, false, internalerr.ErrEmptyQuery
	}

	for _, variant := range caseVariants(query) {
		rec, ok, err := e.store.GetByCode(ctx, variant)
		if err != nil {
			e.logger.Warn().Err(err).Str("code", variant).Msg("exact lookup failed, trying next variant")
			continue
		}
		if ok {
			return rec, true, nil
		}
	}

	matches, err := e.store.ScanByArticle(ctx, query)
	if err != nil {
		e.logger.Warn().Err(err).Str("term", query).Msg("article scan failed")
		return store.Record{}, false, nil
	}
	if len(matches) > 0 {
		return matches[0], true, nil
	}

	return store.Record{}, false, nil
}

// caseVariants returns the exact-lookup key sequence for a query:
// verbatim, upper, lower, with repeats removed.
func caseVariants(query string) []string {
	variants := []string{query}
	for _, v := range []string{strings.ToUpper(query), strings.ToLower(query)} {
		if v != variants[0] && (len(variants) == 1 || v != variants[1]) {
			variants = append(variants, v)
		}
	}
	return variants
}

// ImportDataset acquires the dataset, maps it to records, and bulk
// upserts them in one transaction.
//
// A fetch failure leaves previously imported records untouched; stale
// local data beats no data. A dataset that parses to zero records —
// empty file or unrecognized header — is reported as ErrDatasetEmpty,
// distinct from a hard failure. Each successful import is recorded in
// the audit trail under a fresh ULID.
func (e *Engine) ImportDataset(ctx context.Context) (ImportReport, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return ImportReport{}, internalerr.ErrBusy
	}
	defer e.busy.Store(false)

	ds, err := e.fetcher.FetchDataset(ctx)
	if err != nil {
		return ImportReport{}, err
	}

	records := ingest.MapRecords(ds.Text)
	if len(records) == 0 {
		return ImportReport{Provenance: ds.Provenance}, internalerr.ErrDatasetEmpty
	}

	if e.progress != nil {
		e.progress.Importing(len(records))
	}

	count, err := e.store.BulkUpsert(ctx, records)
	if err != nil {
		return ImportReport{}, err
	}

	run := store.ImportRun{
		ID:         ulid.MustNew(ulid.Now(), e.entropy).String(),
		Provenance: string(ds.Provenance),
		Count:      count,
		ImportedAt: time.Now().UTC(),
	}
	if err := e.store.RecordImportRun(ctx, run); err != nil {
		// The import itself succeeded; a missing audit row is not
		// worth failing it over.
		e.logger.Warn().Err(err).Str("run", run.ID).Msg("import audit write failed")
	}

	e.logger.Info().
		Str("run", run.ID).
		Str("provenance", string(ds.Provenance)).
		Int("count", count).
		Msg("dataset imported")

	return ImportReport{RunID: run.ID, Provenance: ds.Provenance, Count: count}, nil
}

// Reset irreversibly drops every stored record, the import audit
// trail, and the cached raw dataset. It requires the idle state and
// is idempotent: resetting an already-empty system succeeds.
func (e *Engine) Reset(ctx context.Context) error {
	if !e.busy.CompareAndSwap(false, true) {
		return internalerr.ErrBusy
	}
	defer e.busy.Store(false)

	if err := e.store.Purge(ctx); err != nil {
		return err
	}
	if err := e.fetcher.PurgeCache(); err != nil {
		return err
	}

	e.logger.Info().Msg("store and dataset cache purged")
	return nil
}

// History returns the most recent import runs, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]store.ImportRun, error) {
	return e.store.ImportHistory(ctx, limit)
}
