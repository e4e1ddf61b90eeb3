package store

import (
	"context"
	"strings"
	"time"
)

// Store is the main interface for persisting and querying price records
type Store interface {
	Close() error

	// Records
	BulkUpsert(ctx context.Context, records []Record) (int, error)
	GetByCode(ctx context.Context, code string) (Record, bool, error)
	ScanByArticle(ctx context.Context, term string) ([]Record, error)

	// Import audit trail
	RecordImportRun(ctx context.Context, run ImportRun) error
	ImportHistory(ctx context.Context, limit int) ([]ImportRun, error)

	// Purge destroys every stored record and the audit trail.
	// Idempotent: purging an empty store is not an error.
	Purge(ctx context.Context) error
}

// Record is one product entry, keyed by Code.
// Price is kept verbatim: source files carry currency symbols and
// locale-specific separators that must survive a round trip.
type Record struct {
	Code        string
	Article     string
	Description string
	Price       string
	Department  string
}

// ArticleLower is the derived secondary-index key. It has no
// independent lifecycle; implementations recompute it on every upsert.
func (r Record) ArticleLower() string {
	return strings.ToLower(r.Article)
}

// ImportRun records one completed dataset import.
type ImportRun struct {
	ID         string // ULID
	Provenance string // "cache" or "network"
	Count      int
	ImportedAt time.Time
}
