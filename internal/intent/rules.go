package intent

import (
	"regexp"
	"strconv"
)

// Layer acceptance thresholds. Cheaper, more precise layers run first with
// stricter floors; the cascade falls through when a layer's best result does
// not clear its own bar.
const (
	thresholdExact    = 0.80
	thresholdSynonym  = 0.75
	thresholdTemplate = 0.70
	thresholdLearned  = 0.85
)

// rule maps a regex over normalized input directly to an intent.
type rule struct {
	name       string
	re         *regexp.Regexp
	typ        Type
	confidence float64

	// slots derives the typed slot variant from the regex submatches.
	// May be nil for intents without parameters.
	slots func(matches []string) Slots
}

// amountRe matches a bare decimal amount inside normalized text.
var amountRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseAmount extracts the first numeric amount from s, if any.
func parseAmount(s string) (float64, bool) {
	m := amountRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// exactRules is the deterministic first layer: high-precision patterns for
// well-formed utterances. Patterns run against normalized input, so they
// never need case-insensitivity or punctuation handling.
var exactRules = []rule{
	{
		name:       "confirm",
		re:         regexp.MustCompile(`^(yes|yeah|yep|sure|ok|okay|confirm|correct|thats right|go ahead)$`),
		typ:        TypeConfirm,
		confidence: 0.95,
	},
	{
		name:       "cancel",
		re:         regexp.MustCompile(`^(no|nope|cancel|never mind|nevermind|forget it|stop)$`),
		typ:        TypeCancel,
		confidence: 0.95,
	},
	{
		name:       "help",
		re:         regexp.MustCompile(`^(help|what can you do|how does this work)$`),
		typ:        TypeHelp,
		confidence: 0.95,
	},
	{
		name:       "navigate",
		re:         regexp.MustCompile(`^(go to|open|show me|show) (the |my )?(?P<target>budget|reports?|settings|transactions|categories|accounts?|home)( page| screen| tab)?$`),
		typ:        TypeNavigate,
		confidence: 0.92,
		slots: func(m []string) Slots {
			return NavigateSlots{Target: m[3]}
		},
	},
	{
		name:       "create-expense",
		re:         regexp.MustCompile(`^(add|record|log) (an? )?(expense|transaction)( of| for)? (?P<rest>.+)$`),
		typ:        TypeCreate,
		confidence: 0.88,
		slots: func(m []string) Slots {
			s := CreateSlots{Category: stripAmount(m[5])}
			if v, ok := parseAmount(m[5]); ok {
				s.Amount = v
			}
			return s
		},
	},
	{
		name:       "delete-last",
		re:         regexp.MustCompile(`^(delete|remove) (the )?last (one|transaction|expense|entry)$`),
		typ:        TypeDelete,
		confidence: 0.92,
		slots: func([]string) Slots {
			return DeleteSlots{Target: "last"}
		},
	},
	{
		name:       "modify-amount",
		re:         regexp.MustCompile(`^(change|make) (that|it|the last one) (to )?(?P<amount>\d+(?:\.\d+)?)$`),
		typ:        TypeModify,
		confidence: 0.88,
		slots: func(m []string) Slots {
			s := ModifySlots{Field: "amount"}
			if v, ok := parseAmount(m[4]); ok {
				s.Amount = v
			}
			return s
		},
	},
	{
		name:       "query-spending",
		re:         regexp.MustCompile(`^how much (did|have) i (spend|spent)( on (?P<category>.+?))?( (this|last) (week|month|year))?$`),
		typ:        TypeQuery,
		confidence: 0.87,
		slots: func(m []string) Slots {
			s := QuerySlots{Category: m[4]}
			if m[5] != "" {
				s.Time = m[6] + " " + m[7]
			}
			return s
		},
	},
	{
		name:       "query-balance",
		re:         regexp.MustCompile(`^(whats|what is|show) (my )?(balance|total|spending)$`),
		typ:        TypeQuery,
		confidence: 0.9,
	},
	{
		name:       "set-currency",
		re:         regexp.MustCompile(`^set (my )?(default )?currency to (?P<target>\w+)$`),
		typ:        TypeSetPreference,
		confidence: 0.92,
		slots: func(m []string) Slots {
			return PreferenceSlots{Field: "currency", Target: m[3]}
		},
	},
	{
		name:       "set-voice-speed",
		re:         regexp.MustCompile(`^(speak|talk) (slower|faster)$`),
		typ:        TypeSetPreference,
		confidence: 0.92,
		slots: func(m []string) Slots {
			return PreferenceSlots{Field: "voice_speed", Target: m[2]}
		},
	},
}

var fillerRe = regexp.MustCompile(`\s+`)

// stripAmount removes the first amount token from s and tidies whitespace,
// leaving the category/description words.
func stripAmount(s string) string {
	out := amountRe.ReplaceAllString(s, "")
	out = fillerRe.ReplaceAllString(out, " ")
	return trimFiller(out)
}

// trimFiller drops leading/trailing connective words left behind by slot
// extraction ("on", "for", "dollars").
func trimFiller(s string) string {
	words := fillerRe.Split(s, -1)
	filler := map[string]bool{
		"": true, "on": true, "for": true, "of": true, "a": true, "an": true,
		"the": true, "dollars": true, "dollar": true, "bucks": true,
		"euros": true, "euro": true, "yen": true,
	}
	start, end := 0, len(words)
	for start < end && filler[words[start]] {
		start++
	}
	for end > start && filler[words[end-1]] {
		end--
	}
	out := ""
	for i := start; i < end; i++ {
		if out != "" {
			out += " "
		}
		out += words[i]
	}
	return out
}

// matchExactRules runs the first cascade layer over normalized input.
func matchExactRules(input string) (Result, bool) {
	for _, r := range exactRules {
		m := r.re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		res := Result{
			Type:       r.typ,
			Confidence: r.confidence,
			Source:     SourceExactRule,
			Input:      input,
		}
		if r.slots != nil {
			res.Slots = r.slots(m)
		}
		return res, res.Confidence >= thresholdExact
	}
	return Result{}, false
}
