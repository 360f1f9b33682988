package intent

import "regexp"

// slotTemplate is a loosely structured pattern for the third cascade layer.
// Templates trade precision for recall: they accept word orders the exact
// rules reject and extract slots with sub-pattern heuristics instead of
// strict capture groups.
type slotTemplate struct {
	name       string
	re         *regexp.Regexp
	typ        Type
	confidence float64

	// wantAmount requires a numeric amount somewhere in the input for the
	// template to apply.
	wantAmount bool
}

var timeRe = regexp.MustCompile(`\b(yesterday|today|this morning|last night|last \w+|this \w+)\b`)

var slotTemplates = []slotTemplate{
	{
		// "i spent 12.50 on lunch", "paid 30 for the taxi yesterday"
		name:       "spend-statement",
		re:         regexp.MustCompile(`^(i )?(spent|paid|bought|got|had)\b`),
		typ:        TypeCreate,
		confidence: 0.78,
		wantAmount: true,
	},
	{
		// "lunch 12 dollars", "yesterday coffee 4.50"
		name:       "category-amount",
		re:         regexp.MustCompile(`^[a-z][a-z ]* \d+(\.\d+)?( dollars| bucks| euros| yen)?$`),
		typ:        TypeCreate,
		confidence: 0.74,
		wantAmount: true,
	},
	{
		// "12 dollars for parking"
		name:       "amount-category",
		re:         regexp.MustCompile(`^\d+(\.\d+)?( dollars| bucks| euros| yen)? (on|for) [a-z]`),
		typ:        TypeCreate,
		confidence: 0.74,
		wantAmount: true,
	},
	{
		// "what did i spend on groceries", "where did my money go this month"
		name:       "spend-question",
		re:         regexp.MustCompile(`^(what|where|when|how much).*(spend|spent|cost|go|went)\b`),
		typ:        TypeQuery,
		confidence: 0.72,
	},
	{
		// "make the coffee one 5 instead", "that should be 20"
		name:       "amount-correction",
		re:         regexp.MustCompile(`^(make|that|it)\b.*\b(be|to|instead|actually)\b`),
		typ:        TypeModify,
		confidence: 0.71,
		wantAmount: true,
	},
}

// matchTemplates runs the third cascade layer over normalized input.
func matchTemplates(input string) (Result, bool) {
	for _, t := range slotTemplates {
		if !t.re.MatchString(input) {
			continue
		}

		amount, hasAmount := parseAmount(input)
		if t.wantAmount && !hasAmount {
			continue
		}

		when := timeRe.FindString(input)
		category := extractCategory(input)

		var slots Slots
		switch t.typ {
		case TypeCreate:
			slots = CreateSlots{Amount: amount, Category: category, Time: when}
		case TypeQuery:
			slots = QuerySlots{Category: category, Time: when}
		case TypeModify:
			slots = ModifySlots{Field: "amount", Amount: amount}
		}

		return Result{
			Type:       t.typ,
			Confidence: t.confidence,
			Slots:      slots,
			Source:     SourceTemplate,
			Input:      input,
		}, t.confidence >= thresholdTemplate
	}
	return Result{}, false
}

// categoryStopWords are words that never form part of a category description.
var categoryStopWords = map[string]bool{
	"i": true, "spent": true, "paid": true, "bought": true, "got": true,
	"had": true, "make": true, "that": true, "it": true, "be": true,
	"to": true, "instead": true, "actually": true, "what": true,
	"where": true, "when": true, "how": true, "much": true, "did": true,
	"my": true, "money": true, "go": true, "went": true, "spend": true,
	"cost": true, "should": true, "one": true, "yesterday": true,
	"today": true, "this": true, "last": true, "morning": true,
	"night": true, "week": true, "month": true, "year": true,
}

// extractCategory returns the non-stop-word, non-numeric, non-filler words
// of the input, which for loosely structured utterances approximates the
// expense category or description.
func extractCategory(input string) string {
	stripped := amountRe.ReplaceAllString(input, "")
	stripped = timeRe.ReplaceAllString(stripped, "")

	out := ""
	for _, w := range fillerRe.Split(stripped, -1) {
		if w == "" || categoryStopWords[w] {
			continue
		}
		if trimFiller(w) == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += w
	}
	return out
}
