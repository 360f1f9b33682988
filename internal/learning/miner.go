package learning

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgervoice/ledgervoice/internal/intent"
)

// Mining thresholds. A phrasing must recur and its predictions must be
// consistently strong before it becomes a pattern other users of the cache
// will trust.
const (
	minQualityScore = 0.8
	minOccurrences  = 3
	minMeanConf     = 0.9
)

// Rule is one mined pattern: a normalized phrasing promoted into the learned
// cache because enough high-quality samples agree on its intent.
type Rule struct {
	ID         string
	Pattern    string
	Type       intent.Type
	Confidence float64
	Frequency  int
	MinedAt    time.Time
}

// Miner periodically distils the collector's high-quality samples into
// learned patterns and feeds them to the recognition cache.
type Miner struct {
	collector *Collector
	cache     *intent.Cache
	logger    *slog.Logger
}

// NewMiner creates a miner over collector that promotes rules into cache.
func NewMiner(collector *Collector, cache *intent.Cache, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{collector: collector, cache: cache, logger: logger}
}

// Mine groups high-quality samples by intent and normalized input, promotes
// every phrasing seen at least three times with a mean confidence of 0.9 or
// better, and returns the promoted rules. Negative and ambiguous samples
// never contribute.
func (m *Miner) Mine(ctx context.Context) []Rule {
	samples := m.collector.HighQuality(minQualityScore)

	type group struct {
		typ     intent.Type
		count   int
		confSum float64
		slots   intent.Slots
	}
	groups := make(map[string]*group)
	for _, s := range samples {
		if s.Label == LabelNegative || s.Label == LabelAmbiguous {
			continue
		}
		typ := s.EffectiveType()
		if typ == intent.TypeUnknown || s.NormalizedInput == "" {
			continue
		}
		key := string(typ) + "\x00" + s.NormalizedInput
		g, ok := groups[key]
		if !ok {
			g = &group{typ: typ}
			groups[key] = g
		}
		g.count++
		g.confSum += s.Confidence
		g.slots = s.Slots // last sample's slots win
	}

	var rules []Rule
	now := time.Now()
	for key, g := range groups {
		if g.count < minOccurrences {
			continue
		}
		mean := g.confSum / float64(g.count)
		if mean < minMeanConf {
			continue
		}
		pattern := key[len(g.typ)+1:]
		rules = append(rules, Rule{
			ID:         uuid.NewString(),
			Pattern:    pattern,
			Type:       g.typ,
			Confidence: mean,
			Frequency:  g.count,
			MinedAt:    now,
		})
		if m.cache != nil {
			m.cache.Put(ctx, pattern, intent.Result{
				Type:       g.typ,
				Confidence: mean,
				Slots:      g.slots,
				Source:     intent.SourceLearnedCache,
				Input:      pattern,
			}, false)
		}
	}

	if len(rules) > 0 {
		m.logger.Info("mined learned patterns", "rules", len(rules), "samples", len(samples))
	}
	return rules
}
