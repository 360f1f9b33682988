package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
)

// patternKeyPrefix namespaces learned patterns inside the shared store.
const patternKeyPrefix = "intent:pattern:"

// fuzzySimilarityFloor is the minimum normalized edit-distance similarity
// for a fuzzy cache hit.
const fuzzySimilarityFloor = 0.85

// defaultMaxPatterns bounds the cache when no limit is configured.
const defaultMaxPatterns = 200

// LearnedPattern is one cached input-to-intent mapping. Patterns are created
// from high-confidence cascade results, adjusted by confirm/reject feedback,
// and persisted so they survive restarts.
type LearnedPattern struct {
	Key            string    `json:"key"`
	Type           Type      `json:"type"`
	Slots          Slots     `json:"slots,omitempty"`
	Confidence     float64   `json:"confidence"`
	HitCount       int       `json:"hit_count"`
	LearnedAt      time.Time `json:"learned_at"`
	UserCorrection bool      `json:"user_correction"`
}

// learnedPatternJSON mirrors [LearnedPattern] with the slot payload left raw
// so it can be decoded by intent type.
type learnedPatternJSON struct {
	Key            string          `json:"key"`
	Type           Type            `json:"type"`
	Slots          json.RawMessage `json:"slots,omitempty"`
	Confidence     float64         `json:"confidence"`
	HitCount       int             `json:"hit_count"`
	LearnedAt      time.Time       `json:"learned_at"`
	UserCorrection bool            `json:"user_correction"`
}

// UnmarshalJSON decodes a persisted pattern, resolving the slot payload into
// the typed variant for the pattern's intent type.
func (p *LearnedPattern) UnmarshalJSON(b []byte) error {
	var raw learnedPatternJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	slots, err := DecodeSlots(raw.Type, raw.Slots)
	if err != nil {
		return err
	}
	*p = LearnedPattern{
		Key:            raw.Key,
		Type:           raw.Type,
		Slots:          slots,
		Confidence:     raw.Confidence,
		HitCount:       raw.HitCount,
		LearnedAt:      raw.LearnedAt,
		UserCorrection: raw.UserCorrection,
	}
	return nil
}

// Cache is the learned-pattern store backing the cascade's fourth layer.
// Lookups try an exact key first, then a fuzzy scan over all cached keys.
//
// Persistence is best-effort: store failures are logged and the in-memory
// copy stays authoritative. Losing the cache costs latency, not correctness.
type Cache struct {
	mu          sync.RWMutex
	patterns    map[string]*LearnedPattern
	store       kvstore.Store
	maxPatterns int
	logger      *slog.Logger
}

// CacheOption configures a [Cache] during construction.
type CacheOption func(*Cache)

// WithMaxPatterns bounds the number of cached patterns. When the bound is
// exceeded the lowest-confidence pattern is evicted. The default is 200.
func WithMaxPatterns(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxPatterns = n
		}
	}
}

// WithCacheLogger sets the logger. Defaults to [slog.Default].
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a learned-pattern cache backed by store and loads any
// previously persisted patterns. A load failure is not fatal: the cache
// starts empty and logs the error.
func NewCache(ctx context.Context, store kvstore.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		patterns:    make(map[string]*LearnedPattern),
		store:       store,
		maxPatterns: defaultMaxPatterns,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if store != nil {
		c.load(ctx)
	}
	return c
}

func (c *Cache) load(ctx context.Context) {
	entries, err := c.store.List(ctx, patternKeyPrefix)
	if err != nil {
		c.logger.Warn("loading learned patterns", "error", err)
		return
	}
	for key, raw := range entries {
		var p LearnedPattern
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			c.logger.Warn("skipping corrupt learned pattern", "key", key, "error", err)
			continue
		}
		c.patterns[p.Key] = &p
	}
	if len(c.patterns) > 0 {
		c.logger.Info("loaded learned patterns", "count", len(c.patterns))
	}
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}

// Lookup runs the fourth cascade layer: exact key match first, then the best
// fuzzy match above the similarity floor, with confidence scaled by
// similarity. The hit count is incremented on a hit.
func (c *Cache) Lookup(input string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.patterns[input]; ok {
		p.HitCount++
		return c.resultFrom(p, input, 1.0), p.Confidence >= thresholdLearned
	}

	var (
		best    *LearnedPattern
		bestSim float64
	)
	for _, p := range c.patterns {
		sim := similarity(input, p.Key)
		if sim >= fuzzySimilarityFloor && sim > bestSim {
			best, bestSim = p, sim
		}
	}
	if best == nil {
		return Result{}, false
	}

	best.HitCount++
	res := c.resultFrom(best, input, bestSim)
	return res, res.Confidence >= thresholdLearned
}

func (c *Cache) resultFrom(p *LearnedPattern, input string, sim float64) Result {
	return Result{
		Type:       p.Type,
		Confidence: p.Confidence * sim,
		Slots:      p.Slots,
		Source:     SourceLearnedCache,
		Input:      input,
	}
}

// Put inserts or replaces the pattern for input. userCorrection marks
// patterns created from an explicit user fix rather than reverse learning.
func (c *Cache) Put(ctx context.Context, input string, res Result, userCorrection bool) {
	p := &LearnedPattern{
		Key:            input,
		Type:           res.Type,
		Slots:          res.Slots,
		Confidence:     res.Confidence,
		LearnedAt:      time.Now(),
		UserCorrection: userCorrection,
	}

	c.mu.Lock()
	c.patterns[input] = p
	evicted := c.evictIfOverBound()
	c.mu.Unlock()

	c.persist(ctx, p)
	for _, key := range evicted {
		c.unpersist(ctx, key)
	}
}

// Confirm applies positive feedback to the pattern for input:
// conf' = conf*0.9 + 0.1, converging toward 1.
func (c *Cache) Confirm(ctx context.Context, input string) {
	c.adjust(ctx, input, func(conf float64) float64 { return conf*0.9 + 0.1 })
}

// Reject applies negative feedback: conf' = conf*0.9, decaying toward 0 so
// repeatedly rejected patterns stop clearing the layer threshold.
func (c *Cache) Reject(ctx context.Context, input string) {
	c.adjust(ctx, input, func(conf float64) float64 { return conf * 0.9 })
}

func (c *Cache) adjust(ctx context.Context, input string, f func(float64) float64) {
	c.mu.Lock()
	p, ok := c.patterns[input]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.Confidence = f(p.Confidence)
	cp := *p
	c.mu.Unlock()

	c.persist(ctx, &cp)
}

func (c *Cache) persist(ctx context.Context, p *LearnedPattern) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("marshalling learned pattern", "key", p.Key, "error", err)
		return
	}
	if err := c.store.Set(ctx, patternKey(p.Key), string(raw)); err != nil {
		c.logger.Warn("persisting learned pattern", "key", p.Key, "error", err)
	}
}

func (c *Cache) unpersist(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, patternKey(key)); err != nil {
		c.logger.Warn("deleting learned pattern", "key", key, "error", err)
	}
}

// evictIfOverBound removes lowest-confidence patterns until the cache fits
// its bound. Must be called with c.mu held. Returns the evicted keys.
func (c *Cache) evictIfOverBound() []string {
	var evicted []string
	for len(c.patterns) > c.maxPatterns {
		victim := ""
		lowest := 2.0
		for key, p := range c.patterns {
			if p.Confidence < lowest {
				victim, lowest = key, p.Confidence
			}
		}
		delete(c.patterns, victim)
		evicted = append(evicted, victim)
	}
	return evicted
}

func patternKey(input string) string {
	return patternKeyPrefix + sanitizeKey(input)
}

// sanitizeKey keeps store keys single-token.
func sanitizeKey(input string) string {
	return strings.ReplaceAll(input, " ", "_")
}

// similarity is normalized edit-distance similarity in [0, 1]: identical
// strings score 1, disjoint strings approach 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}
