package intent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/pkg/provider/llm"
)

// reverseLearnThreshold is the minimum LLM-result confidence for inserting
// the input into the learned cache.
const reverseLearnThreshold = 0.85

// Cascade runs the five recognition layers in fixed order and returns the
// first result that clears its layer's acceptance threshold. Typical repeat
// usage resolves in the cheap deterministic layers; novel phrasing degrades
// gracefully to the LLM instead of failing outright.
//
// Cascade is safe for concurrent use.
type Cascade struct {
	cache      *Cache
	llm        llm.Provider
	llmTimeout time.Duration
	logger     *slog.Logger
	metrics    *observe.Metrics
}

// CascadeOption configures a [Cascade] during construction.
type CascadeOption func(*Cascade)

// WithLLMTimeout caps the terminal layer's completion call. Default 10s.
func WithLLMTimeout(d time.Duration) CascadeOption {
	return func(c *Cascade) {
		if d > 0 {
			c.llmTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) CascadeOption {
	return func(c *Cascade) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) CascadeOption {
	return func(c *Cascade) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCascade creates a recognition cascade. cache may be nil (layer 4 is
// skipped and reverse learning disabled); provider may be nil (layer 5
// returns unrecognized).
func NewCascade(cache *Cache, provider llm.Provider, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		cache:      cache,
		llm:        provider,
		llmTimeout: defaultLLMTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Recognize turns free text into a structured intent. It never returns an
// error for recognition exhaustion: when even the LLM fallback produces
// nothing usable, the result is [TypeUnknown] and the caller owns the
// clarifying prompt.
func (c *Cascade) Recognize(ctx context.Context, text string) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "intent.recognize")
	defer span.End()

	input := Normalize(text)
	if input == "" {
		return Unknown(input), nil
	}

	type layer struct {
		source Source
		run    func() (Result, bool)
	}
	layers := []layer{
		{SourceExactRule, func() (Result, bool) { return matchExactRules(input) }},
		{SourceSynonym, func() (Result, bool) { return matchSynonyms(input) }},
		{SourceTemplate, func() (Result, bool) { return matchTemplates(input) }},
		{SourceLearnedCache, func() (Result, bool) {
			if c.cache == nil {
				return Result{}, false
			}
			return c.cache.Lookup(input)
		}},
	}

	for _, l := range layers {
		start := time.Now()
		res, ok := l.run()
		c.metrics.CascadeLayerDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("layer", string(l.source))))
		if !ok {
			continue
		}
		c.metrics.RecordLayerHit(ctx, string(l.source))
		span.SetAttributes(observe.Attr("layer", string(l.source)), observe.Attr("type", string(res.Type)))
		c.logger.Debug("intent resolved",
			"layer", l.source, "type", res.Type, "confidence", res.Confidence)
		return res, nil
	}

	// Terminal layer: no threshold, the result stands whatever it is.
	start := time.Now()
	res, err := recognizeWithLLM(ctx, c.llm, c.llmTimeout, input)
	elapsed := time.Since(start).Seconds()
	c.metrics.CascadeLayerDuration.Record(ctx, elapsed,
		metric.WithAttributes(observe.Attr("layer", string(SourceLLM))))
	c.metrics.LLMDuration.Record(ctx, elapsed)
	if err != nil {
		c.logger.Warn("llm fallback failed", "error", err)
		c.metrics.RecordProviderError(ctx, "llm", "recognition")
	}
	c.metrics.RecordLayerHit(ctx, string(SourceLLM))
	span.SetAttributes(observe.Attr("layer", string(SourceLLM)), observe.Attr("type", string(res.Type)))

	// Reverse learning: a strong LLM result seeds the cache so repeat
	// phrasing resolves in layer 4 next time.
	if c.cache != nil && res.Type != TypeUnknown && res.Confidence >= reverseLearnThreshold {
		c.cache.Put(ctx, input, res, false)
		c.metrics.LearnedPatterns.Add(ctx, 1)
		c.logger.Debug("reverse-learned pattern", "input", input, "type", res.Type)
	}

	return res, nil
}

// Confirm applies positive user feedback to the learned pattern for text.
func (c *Cascade) Confirm(ctx context.Context, text string) {
	if c.cache != nil {
		c.cache.Confirm(ctx, Normalize(text))
	}
}

// Reject applies negative user feedback to the learned pattern for text.
func (c *Cascade) Reject(ctx context.Context, text string) {
	if c.cache != nil {
		c.cache.Reject(ctx, Normalize(text))
	}
}

// Correct records an explicit user correction: the corrected intent is
// cached for the input at full confidence.
func (c *Cascade) Correct(ctx context.Context, text string, corrected Result) {
	if c.cache == nil {
		return
	}
	corrected.Confidence = 1.0
	c.cache.Put(ctx, Normalize(text), corrected, true)
	c.metrics.LearnedPatterns.Add(ctx, 1)
}
