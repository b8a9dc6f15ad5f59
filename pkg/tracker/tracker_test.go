package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/studioweb/quoteai/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndQuery(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		Fingerprint:      "abc",
		Model:            "gpt-4o-mini",
		Outcome:          models.OutcomeGenerated,
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		LatencyMs:        820,
		CreatedAt:        now,
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Query(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.TotalTokens != 150 || got.Fingerprint != "abc" || got.LatencyMs != 820 {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.CallID) != 36 {
		t.Errorf("CallID = %q, want a generated UUID", got.CallID)
	}
	if got.CreatedAt.UnixMilli() != now.UnixMilli() {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}

	records, err = tr.Query(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records after now, got %d", len(records))
	}
}

func TestTotalTokens(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		_ = tr.Record(ctx, models.UsageRecord{
			Model: "gpt-4o-mini", Outcome: models.OutcomeGenerated,
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	_ = tr.Record(ctx, models.UsageRecord{
		Model: "gpt-4o-mini", Outcome: models.OutcomeGenerated,
		TotalTokens: 999, CreatedAt: now.Add(-48 * time.Hour),
	})

	total, err := tr.TotalTokens(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 450 {
		t.Errorf("expected 450, got %d", total)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.UsageRecord{Model: "gpt-4o-mini", Outcome: models.OutcomeGenerated, PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140, LatencyMs: 1000, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Model: "gpt-4o-mini", Outcome: models.OutcomeGenerated, PromptTokens: 120, CompletionTokens: 60, TotalTokens: 180, LatencyMs: 2000, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Model: "gpt-4o-mini", Outcome: models.OutcomeInvalid, PromptTokens: 90, CompletionTokens: 10, TotalTokens: 100, LatencyMs: 500, CreatedAt: now})

	summaries, err := tr.Summary(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	gen := summaries[0]
	if gen.Outcome != models.OutcomeGenerated || gen.RequestCount != 2 || gen.TotalTokens != 320 || gen.AvgLatencyMs != 1500 {
		t.Errorf("unexpected generated summary: %+v", gen)
	}
	if summaries[1].Outcome != models.OutcomeInvalid || summaries[1].RequestCount != 1 {
		t.Errorf("unexpected invalid summary: %+v", summaries[1])
	}
}

func TestRecordDefaultsCreatedAt(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Record(ctx, models.UsageRecord{Model: "m", Outcome: models.OutcomeFailed}); err != nil {
		t.Fatal(err)
	}
	records, err := tr.Query(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestRecordKeepsCallID(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	id := "5f1c7c1e-3d29-4d8e-9a55-0f4c2b1e7a10"
	if err := tr.Record(ctx, models.UsageRecord{CallID: id, Model: "m", Outcome: models.OutcomeGenerated}); err != nil {
		t.Fatal(err)
	}
	records, err := tr.Query(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].CallID != id {
		t.Errorf("records = %+v", records)
	}
}
