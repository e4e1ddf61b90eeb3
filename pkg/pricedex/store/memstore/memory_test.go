package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

func TestUpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	count, err := s.BulkUpsert(ctx, []store.Record{
		{Code: "X1", Article: "Foo"},
		{Code: "X1", Article: "Bar"},
		{Code: "", Article: "dropped"},
	})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	rec, found, _ := s.GetByCode(ctx, "X1")
	if !found || rec.Article != "Bar" {
		t.Errorf("got %+v found=%v", rec, found)
	}
}

func TestScanOrderDeterministic(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.BulkUpsert(ctx, []store.Record{
		{Code: "C3", Article: "widget c"},
		{Code: "A1", Article: "widget a"},
		{Code: "B2", Article: "widget b"},
	})

	matches, err := s.ScanByArticle(ctx, "WIDGET")
	if err != nil {
		t.Fatalf("ScanByArticle: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Code != "A1" || matches[1].Code != "B2" || matches[2].Code != "C3" {
		t.Errorf("scan order not stable: %+v", matches)
	}
}

func TestPurgeResetsEverything(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.BulkUpsert(ctx, []store.Record{{Code: "A1", Article: "Widget"}})
	s.RecordImportRun(ctx, store.ImportRun{ID: "01X", Count: 1, ImportedAt: time.Now()})

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if s.Len() != 0 {
		t.Error("records survived purge")
	}
	if runs, _ := s.ImportHistory(ctx, 10); len(runs) != 0 {
		t.Error("audit trail survived purge")
	}
	if err := s.Purge(ctx); err != nil {
		t.Errorf("second purge errored: %v", err)
	}
}
