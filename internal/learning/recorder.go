package learning

import (
	"context"

	"github.com/ledgervoice/ledgervoice/internal/intent"
)

// Recognizer is the slice of the recognition pipeline the recorder wraps.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (intent.Result, error)
}

// Recorder decorates a recognizer so every successful recognition lands in
// the sample collector, tagged with static session context. Recognition
// semantics are untouched: results and errors pass through unchanged.
type Recorder struct {
	inner     Recognizer
	collector *Collector
	context   map[string]any
}

var _ Recognizer = (*Recorder)(nil)

// NewRecorder wraps inner. extra carries session context attached to every
// sample; nil is fine.
func NewRecorder(inner Recognizer, collector *Collector, extra map[string]any) *Recorder {
	return &Recorder{inner: inner, collector: collector, context: extra}
}

// Recognize delegates to the wrapped recognizer and records the result.
// Empty inputs and failed recognitions are not sampled.
func (r *Recorder) Recognize(ctx context.Context, text string) (intent.Result, error) {
	res, err := r.inner.Recognize(ctx, text)
	if err != nil {
		return res, err
	}
	if intent.Normalize(text) != "" {
		r.collector.Record(ctx, text, res, r.context)
	}
	return res, nil
}
