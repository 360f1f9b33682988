package learning

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
)

// sampleKeyPrefix namespaces learning samples inside the shared store.
const sampleKeyPrefix = "learning:sample:"

// defaultMaxSamples bounds the collector when no limit is configured.
const defaultMaxSamples = 500

// Collector captures recognition samples, applies user feedback and keeps a
// bounded window of recent samples. The oldest sample is dropped when the
// bound is exceeded.
//
// Persistence through the store is best-effort, matching the learned-pattern
// cache: the in-memory copy stays authoritative and store failures only cost
// history across restarts.
type Collector struct {
	mu         sync.RWMutex
	samples    []*Sample // ordered oldest first
	byID       map[string]*Sample
	store      kvstore.Store
	maxSamples int
	logger     *slog.Logger
	now        func() time.Time
}

// CollectorOption configures a [Collector] during construction.
type CollectorOption func(*Collector)

// WithMaxSamples bounds the number of retained samples. Default 500.
func WithMaxSamples(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.maxSamples = n
		}
	}
}

// WithCollectorLogger sets the logger. Defaults to [slog.Default].
func WithCollectorLogger(l *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source. Tests use this to pin sample ages.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCollector creates a sample collector backed by store and loads any
// previously persisted samples, oldest first. store may be nil for a purely
// in-memory collector.
func NewCollector(ctx context.Context, store kvstore.Store, opts ...CollectorOption) *Collector {
	c := &Collector{
		byID:       make(map[string]*Sample),
		store:      store,
		maxSamples: defaultMaxSamples,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if store != nil {
		c.load(ctx)
	}
	return c
}

func (c *Collector) load(ctx context.Context) {
	entries, err := c.store.List(ctx, sampleKeyPrefix)
	if err != nil {
		c.logger.Warn("loading learning samples", "error", err)
		return
	}
	for key, raw := range entries {
		var s Sample
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			c.logger.Warn("skipping corrupt learning sample", "key", key, "error", err)
			continue
		}
		c.samples = append(c.samples, &s)
		c.byID[s.ID] = &s
	}
	sort.Slice(c.samples, func(i, j int) bool {
		return c.samples[i].Timestamp.Before(c.samples[j].Timestamp)
	})
	c.trimLocked(ctx)
	if len(c.samples) > 0 {
		c.logger.Info("loaded learning samples", "count", len(c.samples))
	}
}

// Record captures a recognition result as a weak-positive sample and returns
// its ID for later feedback. extra carries session context (active screen,
// preceding intent) that raises the sample's quality score; nil is fine.
func (c *Collector) Record(ctx context.Context, rawInput string, res intent.Result, extra map[string]any) string {
	s := &Sample{
		ID:              uuid.NewString(),
		RawInput:        rawInput,
		NormalizedInput: intent.Normalize(rawInput),
		PredictedType:   res.Type,
		Confidence:      res.Confidence,
		Source:          res.Source,
		Label:           LabelWeakPositive,
		Slots:           res.Slots,
		Context:         extra,
		Timestamp:       c.now(),
	}

	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.byID[s.ID] = s
	c.trimLocked(ctx)
	c.mu.Unlock()

	c.persist(ctx, s)
	return s.ID
}

// ApplyFeedback relabels the sample for id according to the user's reaction.
// correctedType is consulted only for [FeedbackModify]; for every other
// feedback the predicted intent becomes the actual one. Unknown IDs are
// ignored.
func (c *Collector) ApplyFeedback(ctx context.Context, id string, fb Feedback, correctedType intent.Type) {
	c.mu.Lock()
	s, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	s.Label = labelFor(fb)
	if fb == FeedbackModify && correctedType != "" {
		s.ActualType = correctedType
	} else {
		s.ActualType = s.PredictedType
	}
	cp := *s
	c.mu.Unlock()

	c.persist(ctx, &cp)
}

// FeedbackByInput applies feedback to the most recent sample whose normalized
// input matches text, so clients can react to an utterance without tracking
// sample IDs. Returns false when no sample matches.
func (c *Collector) FeedbackByInput(ctx context.Context, text string, fb Feedback, correctedType intent.Type) bool {
	norm := intent.Normalize(text)

	c.mu.Lock()
	var id string
	for i := len(c.samples) - 1; i >= 0; i-- {
		if c.samples[i].NormalizedInput == norm {
			id = c.samples[i].ID
			break
		}
	}
	c.mu.Unlock()

	if id == "" {
		return false
	}
	c.ApplyFeedback(ctx, id, fb, correctedType)
	return true
}

// Len returns the number of retained samples.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// HighQuality returns samples whose [Sample.QualityScore] meets min, newest
// last. The returned slice is a copy.
func (c *Collector) HighQuality(min float64) []*Sample {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Sample
	for _, s := range c.samples {
		if s.QualityScore(now) >= min {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out
}

// trimLocked drops the oldest samples over the bound. Must be called with
// c.mu held.
func (c *Collector) trimLocked(ctx context.Context) {
	for len(c.samples) > c.maxSamples {
		victim := c.samples[0]
		c.samples = c.samples[1:]
		delete(c.byID, victim.ID)
		c.unpersist(ctx, victim.ID)
	}
}

func (c *Collector) persist(ctx context.Context, s *Sample) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		c.logger.Warn("marshalling learning sample", "id", s.ID, "error", err)
		return
	}
	if err := c.store.Set(ctx, sampleKeyPrefix+s.ID, string(raw)); err != nil {
		c.logger.Warn("persisting learning sample", "id", s.ID, "error", err)
	}
}

func (c *Collector) unpersist(ctx context.Context, id string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, sampleKeyPrefix+id); err != nil {
		c.logger.Warn("deleting learning sample", "id", id, "error", err)
	}
}
