package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
	llmmock "github.com/ledgervoice/ledgervoice/pkg/provider/llm/mock"
)

func newTestCascade(mock *llmmock.Provider) *Cascade {
	cache := NewCache(context.Background(), kvstore.NewMemStore())
	return NewCascade(cache, mock)
}

func TestCascade_ExactLayerWinsWithoutLLM(t *testing.T) {
	mock := &llmmock.Provider{}
	c := newTestCascade(mock)

	res, err := c.Recognize(context.Background(), "Yes!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != TypeConfirm || res.Source != SourceExactRule {
		t.Errorf("got (%v, %v), want confirm via exact_rule", res.Type, res.Source)
	}
	if got := mock.CallCount(); got != 0 {
		t.Errorf("LLM called %d times for an exact-rule hit, want 0", got)
	}
}

func TestCascade_SynonymLayerBeforeTemplates(t *testing.T) {
	c := newTestCascade(&llmmock.Provider{})

	res, err := c.Recognize(context.Background(), "pull up my budget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceSynonym {
		t.Errorf("source = %v, want synonym_expansion", res.Source)
	}
	if res.Type != TypeNavigate {
		t.Errorf("type = %v, want navigate", res.Type)
	}
}

func TestCascade_TemplateLayerForLooseUtterances(t *testing.T) {
	c := newTestCascade(&llmmock.Provider{})

	res, err := c.Recognize(context.Background(), "I spent 12.50 on lunch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceTemplate {
		t.Errorf("source = %v, want template_match", res.Source)
	}
	slots, ok := res.Slots.(CreateSlots)
	if !ok {
		t.Fatalf("slots = %T, want CreateSlots", res.Slots)
	}
	if slots.Amount != 12.5 {
		t.Errorf("amount slot = %v, want 12.5", slots.Amount)
	}
}

func TestCascade_ReverseLearningAcceleratesRepeats(t *testing.T) {
	mock := &llmmock.Provider{
		CompleteResponses: []string{
			`{"intent":"create","confidence":0.9,"slots":{"category":"gym"}}`,
		},
	}
	c := newTestCascade(mock)

	const utterance = "book the gym membership"

	first, err := c.Recognize(context.Background(), utterance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Source != SourceLLM {
		t.Fatalf("first source = %v, want llm_fallback", first.Source)
	}
	if got := mock.CallCount(); got != 1 {
		t.Fatalf("LLM calls = %d, want 1", got)
	}

	// The strong LLM result was reverse-learned, so the repeat resolves in
	// the cache layer without touching the LLM again.
	second, err := c.Recognize(context.Background(), utterance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Source != SourceLearnedCache {
		t.Errorf("second source = %v, want learned_cache", second.Source)
	}
	if second.Type != TypeCreate {
		t.Errorf("second type = %v, want create", second.Type)
	}
	if got := mock.CallCount(); got != 1 {
		t.Errorf("LLM calls after repeat = %d, want 1", got)
	}
}

func TestCascade_WeakLLMResultIsNotLearned(t *testing.T) {
	mock := &llmmock.Provider{
		CompleteResponses: []string{`{"intent":"query","confidence":0.5}`},
	}
	c := newTestCascade(mock)

	const utterance = "hmm finances and stuff maybe"

	if _, err := c.Recognize(context.Background(), utterance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Recognize(context.Background(), utterance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mock.CallCount(); got != 2 {
		t.Errorf("LLM calls = %d, want 2 (weak result must not be cached)", got)
	}
}

func TestCascade_LLMFailureReturnsUnknown(t *testing.T) {
	mock := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	c := newTestCascade(mock)

	res, err := c.Recognize(context.Background(), "gobbledygook phrase")
	if err != nil {
		t.Fatalf("recognition exhaustion must not surface an error, got %v", err)
	}
	if res.Type != TypeUnknown {
		t.Errorf("type = %v, want unknown", res.Type)
	}
}

func TestCascade_UnparseableLLMOutputReturnsUnknown(t *testing.T) {
	mock := &llmmock.Provider{
		CompleteResponses: []string{"I think the user wants to create something?"},
	}
	c := newTestCascade(mock)

	res, err := c.Recognize(context.Background(), "gobbledygook phrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != TypeUnknown {
		t.Errorf("type = %v, want unknown", res.Type)
	}
}

func TestCascade_CodeFencedJSONIsParsed(t *testing.T) {
	mock := &llmmock.Provider{
		CompleteResponses: []string{
			"```json\n{\"intent\":\"navigate\",\"confidence\":0.92,\"slots\":{\"target\":\"reports\"}}\n```",
		},
	}
	c := newTestCascade(mock)

	res, err := c.Recognize(context.Background(), "bring the numbers up please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != TypeNavigate {
		t.Errorf("type = %v, want navigate", res.Type)
	}
	slots, ok := res.Slots.(NavigateSlots)
	if !ok {
		t.Fatalf("slots = %T, want NavigateSlots", res.Slots)
	}
	if slots.Target != "reports" {
		t.Errorf("target slot = %v, want reports", slots.Target)
	}
}

func TestCascade_CorrectionIsCachedAtFullConfidence(t *testing.T) {
	c := newTestCascade(&llmmock.Provider{CompleteErr: errors.New("down")})

	c.Correct(context.Background(), "the usual coffee thing",
		Result{Type: TypeCreate, Slots: CreateSlots{Category: "coffee"}})

	res, err := c.Recognize(context.Background(), "the usual coffee thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceLearnedCache {
		t.Errorf("source = %v, want learned_cache", res.Source)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Confidence)
	}
	if res.Type != TypeCreate {
		t.Errorf("type = %v, want create", res.Type)
	}
}

func TestCascade_EmptyInputIsUnknown(t *testing.T) {
	c := newTestCascade(&llmmock.Provider{})

	res, err := c.Recognize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != TypeUnknown {
		t.Errorf("type = %v, want unknown", res.Type)
	}
}
