package intent

import "strings"

// synonymSets maps paraphrase words onto the canonical vocabulary the exact
// rules are written in. Expansion is word-by-word over normalized input;
// multi-word phrases are handled by phraseSynonyms first.
var synonymSets = map[string]string{
	// creation verbs
	"bought":    "add",
	"purchased": "add",
	"spent":     "add",
	"paid":      "add",
	"track":     "add",
	"note":      "record",
	"enter":     "add",

	// deletion verbs
	"erase":   "delete",
	"drop":    "delete",
	"undo":    "delete",
	"scratch": "delete",

	// modification verbs
	"update":  "change",
	"edit":    "change",
	"adjust":  "change",
	"correct": "change",
	"fix":     "change",

	// navigation verbs
	"display": "show",
	"view":    "show",
	"see":     "show",
	"check":   "show",

	// navigation targets
	"overview":  "home",
	"dashboard": "home",
	"spending":  "transactions",
	"history":   "transactions",
	"expenses":  "transactions",
}

// phraseSynonyms rewrites multi-word paraphrases before word-level expansion.
var phraseSynonyms = [][2]string{
	{"pull up", "show"},
	{"take me to", "go to"},
	{"get rid of", "delete"},
	{"how many", "how much"},
	{"put down", "add"},
}

// synonymPenalty discounts results recovered through expansion: the match is
// real but the phrasing was not the canonical one.
const synonymPenalty = 0.9

// expandSynonyms rewrites input into canonical vocabulary. Returns the
// expanded string and whether anything changed.
func expandSynonyms(input string) (string, bool) {
	expanded := input
	for _, p := range phraseSynonyms {
		expanded = strings.ReplaceAll(expanded, p[0], p[1])
	}

	words := strings.Fields(expanded)
	changed := expanded != input
	for i, w := range words {
		if canon, ok := synonymSets[w]; ok {
			words[i] = canon
			changed = true
		}
	}
	if !changed {
		return input, false
	}
	return strings.Join(words, " "), true
}

// matchSynonyms runs the second cascade layer: expand the input against the
// synonym sets, then re-test the exact rules with a confidence haircut.
func matchSynonyms(input string) (Result, bool) {
	expanded, changed := expandSynonyms(input)
	if !changed {
		return Result{}, false
	}

	res, ok := matchExactRules(expanded)
	if !ok {
		return Result{}, false
	}

	res.Source = SourceSynonym
	res.Confidence *= synonymPenalty
	res.Input = input
	return res, res.Confidence >= thresholdSynonym
}
