package learning

import (
	"context"
	"testing"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func recognized(typ intent.Type, conf float64) intent.Result {
	return intent.Result{Type: typ, Confidence: conf, Source: intent.SourceLLM}
}

func TestCollector_RecordCreatesWeakPositive(t *testing.T) {
	t.Parallel()

	c := NewCollector(context.Background(), nil, WithClock(testClock))
	id := c.Record(context.Background(), "Log my train ticket", recognized(intent.TypeCreate, 0.92), nil)
	if id == "" {
		t.Fatal("Record returned an empty ID")
	}
	if got := c.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	samples := c.HighQuality(0)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	s := samples[0]
	if s.Label != LabelWeakPositive {
		t.Errorf("label = %v, want weak_positive", s.Label)
	}
	if s.NormalizedInput != "log my train ticket" {
		t.Errorf("normalized input = %q", s.NormalizedInput)
	}
	if s.ActualType != "" {
		t.Errorf("actual type = %v before feedback, want empty", s.ActualType)
	}
}

func TestCollector_ApplyFeedback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := NewCollector(ctx, nil, WithClock(testClock))
	confirmed := c.Record(ctx, "log my train ticket", recognized(intent.TypeCreate, 0.92), nil)
	modified := c.Record(ctx, "show the damage for march", recognized(intent.TypeNavigate, 0.7), nil)

	c.ApplyFeedback(ctx, confirmed, FeedbackConfirm, "")
	c.ApplyFeedback(ctx, modified, FeedbackModify, intent.TypeQuery)
	c.ApplyFeedback(ctx, "no-such-id", FeedbackConfirm, "")

	samples := c.HighQuality(0)
	if samples[0].Label != LabelConfirmedPositive || samples[0].ActualType != intent.TypeCreate {
		t.Errorf("confirmed sample = (%v, %v)", samples[0].Label, samples[0].ActualType)
	}
	if samples[1].Label != LabelCorrected || samples[1].ActualType != intent.TypeQuery {
		t.Errorf("corrected sample = (%v, %v)", samples[1].Label, samples[1].ActualType)
	}
}

func TestCollector_HighQualityFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := NewCollector(ctx, nil, WithClock(testClock))
	strong := c.Record(ctx, "log my train ticket", recognized(intent.TypeCreate, 0.95), nil)
	c.Record(ctx, "maybe finances or something", recognized(intent.TypeUnknown, 0.3), nil)
	c.ApplyFeedback(ctx, strong, FeedbackConfirm, "")

	got := c.HighQuality(0.6)
	if len(got) != 1 {
		t.Fatalf("got %d high-quality samples, want 1", len(got))
	}
	if got[0].ID != strong {
		t.Errorf("high-quality sample = %s, want %s", got[0].ID, strong)
	}
}

func TestCollector_EvictsOldestOverBound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := kvstore.NewMemStore()
	c := NewCollector(ctx, store, WithMaxSamples(2), WithClock(testClock))
	first := c.Record(ctx, "first utterance", recognized(intent.TypeCreate, 0.9), nil)
	c.Record(ctx, "second utterance", recognized(intent.TypeCreate, 0.9), nil)
	c.Record(ctx, "third utterance", recognized(intent.TypeCreate, 0.9), nil)

	if got := c.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	for _, s := range c.HighQuality(0) {
		if s.ID == first {
			t.Error("oldest sample survived eviction")
		}
	}

	entries, err := store.List(ctx, "learning:sample:")
	if err != nil {
		t.Fatalf("listing store: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("persisted %d samples, want 2", len(entries))
	}
}

func TestCollector_SurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := kvstore.NewMemStore()
	first := NewCollector(ctx, store, WithClock(testClock))
	id := first.Record(ctx, "log my train ticket", recognized(intent.TypeCreate, 0.92), nil)
	first.ApplyFeedback(ctx, id, FeedbackConfirm, "")

	second := NewCollector(ctx, store, WithClock(testClock))
	if got := second.Len(); got != 1 {
		t.Fatalf("restarted Len = %d, want 1", got)
	}
	s := second.HighQuality(0)[0]
	if s.Label != LabelConfirmedPositive {
		t.Errorf("restored label = %v, want confirmed_positive", s.Label)
	}
	if s.PredictedType != intent.TypeCreate {
		t.Errorf("restored type = %v, want create", s.PredictedType)
	}
}
