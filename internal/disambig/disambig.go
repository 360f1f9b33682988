// Package disambig resolves referring expressions ("that one", "yesterday's
// coffee") against candidate ledger records, and rates how much confirmation
// an action needs before it may proceed.
package disambig

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// ReferenceKind classifies a referring expression found in an utterance.
type ReferenceKind string

const (
	// ReferenceTemporal points at a time ("yesterday", "this morning").
	ReferenceTemporal ReferenceKind = "temporal"
	// ReferenceOrdinal points at a position or the deictic antecedent
	// ("the last one", "that").
	ReferenceOrdinal ReferenceKind = "ordinal"
	// ReferenceDescriptive names a category or description fragment.
	ReferenceDescriptive ReferenceKind = "descriptive"
	// ReferenceAmount names a monetary amount.
	ReferenceAmount ReferenceKind = "amount"
	// ReferenceMerchant names a merchant.
	ReferenceMerchant ReferenceKind = "merchant"
)

// Reference is one detected referring expression. Amount is set only for
// [ReferenceAmount].
type Reference struct {
	Kind   ReferenceKind
	Text   string
	Amount float64
}

// Record is a candidate ledger entry a reference may resolve to.
type Record struct {
	ID          string
	Amount      float64
	Category    string
	Description string
	Merchant    string
	CreatedAt   time.Time
}

// Context carries conversational state the scorer consults.
type Context struct {
	// LastMentionedID is the record most recently surfaced to the user,
	// the antecedent for deictic references.
	LastMentionedID string
	// Now anchors temporal references. Zero means time.Now.
	Now time.Time
}

// Candidate is a scored record.
type Candidate struct {
	Record Record
	Score  float64
}

// Outcome is the disambiguation decision.
type Outcome string

const (
	// OutcomeNoMatch means no candidate was convincing; ask the user to
	// repeat.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeAuto means the best candidate wins outright.
	OutcomeAuto Outcome = "auto"
	// OutcomeClarify means several candidates are plausible; ask the user
	// to pick among Choices.
	OutcomeClarify Outcome = "clarify"
	// OutcomeConfirm means the best candidate is chosen but the action
	// must be confirmed before executing.
	OutcomeConfirm Outcome = "confirm"
)

// Resolution is the outcome of resolving references against candidates.
type Resolution struct {
	Outcome Outcome
	Best    *Candidate
	// Choices holds up to three ranked candidates when Outcome is
	// [OutcomeClarify].
	Choices []Candidate
}

// Decision thresholds. A best score under noMatchFloor is a miss; at or
// above autoFloor with a clear margin the match stands on its own.
const (
	noMatchFloor = 0.70
	autoFloor    = 0.85
	clearMargin  = 0.15
	maxChoices   = 3
)

// Scoring weights per reference kind.
const (
	amountWeight        = 0.5
	descriptiveWeight   = 0.4
	merchantWeight      = 0.4
	lastMentionedWeight = 0.3
	temporalWeight      = 0.2
	newestWeight        = 0.15
)

// merchantSimilarityFloor gates fuzzy merchant matches.
const merchantSimilarityFloor = 0.85

var refAmountRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

var temporalWords = map[string]bool{
	"yesterday": true, "today": true, "tonight": true,
	"morning": true, "afternoon": true, "evening": true,
	"earlier": true, "ago": true, "recently": true,
}

var deicticWords = map[string]bool{
	"that": true, "this": true, "it": true,
	"last": true, "latest": true, "previous": true,
}

// stopWords never carry descriptive content.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "one": true, "to": true,
	"change": true, "modify": true, "update": true, "edit": true,
	"delete": true, "remove": true, "make": true, "set": true,
	"for": true, "of": true, "on": true, "my": true, "entry": true,
	"record": true, "expense": true, "transaction": true,
}

// DetectReferences extracts referring expressions from a normalized
// utterance. Every amount, temporal word and deictic word yields a
// reference; leftover content words become descriptive references that
// double as merchant probes.
func DetectReferences(text string) []Reference {
	var refs []Reference
	for _, m := range refAmountRe.FindAllString(text, -1) {
		amt, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		refs = append(refs, Reference{Kind: ReferenceAmount, Text: m, Amount: amt})
	}

	stripped := refAmountRe.ReplaceAllString(text, " ")
	for _, word := range strings.Fields(stripped) {
		switch {
		case temporalWords[word]:
			refs = append(refs, Reference{Kind: ReferenceTemporal, Text: word})
		case deicticWords[word]:
			refs = append(refs, Reference{Kind: ReferenceOrdinal, Text: word})
		case stopWords[word]:
		default:
			refs = append(refs,
				Reference{Kind: ReferenceDescriptive, Text: word},
				Reference{Kind: ReferenceMerchant, Text: word})
		}
	}
	return refs
}

// Resolve scores every record against the references and applies the
// decision policy.
func Resolve(refs []Reference, records []Record, ctx Context) Resolution {
	if len(records) == 0 {
		return Resolution{Outcome: OutcomeNoMatch}
	}
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}

	newestID := newest(records)
	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, Candidate{
			Record: rec,
			Score:  score(refs, rec, ctx, rec.ID == newestID),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	if best.Score < noMatchFloor {
		return Resolution{Outcome: OutcomeNoMatch}
	}

	runnerUp := 0.0
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}
	if best.Score >= autoFloor && best.Score-runnerUp >= clearMargin {
		return Resolution{Outcome: OutcomeAuto, Best: &best}
	}

	over := 0
	for _, c := range candidates {
		if c.Score >= noMatchFloor {
			over++
		}
	}
	if over >= 2 {
		choices := candidates
		if len(choices) > maxChoices {
			choices = choices[:maxChoices]
		}
		return Resolution{Outcome: OutcomeClarify, Best: &best, Choices: choices}
	}

	return Resolution{Outcome: OutcomeConfirm, Best: &best}
}

// score sums weighted per-reference matches, clamped to [0, 1]. Each
// reference kind contributes at most once.
func score(refs []Reference, rec Record, ctx Context, isNewest bool) float64 {
	var (
		total   float64
		counted = map[ReferenceKind]bool{}
		add     = func(kind ReferenceKind, w float64) {
			if !counted[kind] {
				counted[kind] = true
				total += w
			}
		}
	)

	for _, ref := range refs {
		switch ref.Kind {
		case ReferenceAmount:
			add(ReferenceAmount, amountScore(ref.Amount, rec.Amount))
		case ReferenceDescriptive:
			if containsFold(rec.Category, ref.Text) || containsFold(rec.Description, ref.Text) {
				add(ReferenceDescriptive, descriptiveWeight)
			}
		case ReferenceMerchant:
			if rec.Merchant != "" && similarity(ref.Text, strings.ToLower(rec.Merchant)) >= merchantSimilarityFloor {
				add(ReferenceMerchant, merchantWeight)
			}
		case ReferenceOrdinal:
			if ctx.LastMentionedID != "" && rec.ID == ctx.LastMentionedID {
				add(ReferenceOrdinal, lastMentionedWeight)
			}
			if isNewest {
				add("newest", newestWeight)
			}
		case ReferenceTemporal:
			if temporalMatches(ref.Text, rec.CreatedAt, ctx.Now) {
				add(ReferenceTemporal, temporalWeight)
			}
		}
	}

	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total
}

// amountScore awards the full weight when the reference and the record agree
// within one currency unit, decaying linearly with relative distance
// otherwise. A corrected amount ("change that to 50") rarely equals the old
// one, so proximity still counts.
func amountScore(ref, rec float64) float64 {
	diff := math.Abs(ref - rec)
	if diff <= 1 {
		return amountWeight
	}
	scale := math.Max(ref, rec)
	if scale == 0 {
		return 0
	}
	s := amountWeight * (1 - diff/scale)
	if s < 0 {
		return 0
	}
	return s
}

func temporalMatches(word string, created, now time.Time) bool {
	if created.IsZero() {
		return false
	}
	days := daysBetween(created, now)
	switch word {
	case "today", "tonight", "morning", "afternoon", "evening", "earlier", "recently":
		return days == 0
	case "yesterday":
		return days == 1
	default:
		return false
	}
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return int(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).
		Sub(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)).Hours() / 24)
}

func newest(records []Record) string {
	id := ""
	var latest time.Time
	for _, rec := range records {
		if rec.CreatedAt.After(latest) {
			latest = rec.CreatedAt
			id = rec.ID
		}
	}
	return id
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// similarity is normalized edit-distance similarity in [0, 1].
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
