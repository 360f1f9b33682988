// Package intent implements the five-layer intent recognition cascade that
// turns free-form transcribed text into a structured, confidence-scored
// command. Layers run strictly in order from cheapest to most expensive:
// exact rules, synonym expansion, template matching, learned-cache lookup,
// and finally an LLM fallback.
package intent

// Type classifies what the user wants to do.
type Type string

const (
	TypeCreate        Type = "create"
	TypeModify        Type = "modify"
	TypeDelete        Type = "delete"
	TypeQuery         Type = "query"
	TypeNavigate      Type = "navigate"
	TypeSetPreference Type = "set_preference"
	TypeConfirm       Type = "confirm"
	TypeCancel        Type = "cancel"
	TypeHelp          Type = "help"

	// TypeUnknown is the explicit "unrecognized" result returned when every
	// layer, including the LLM fallback, fails to produce a usable intent.
	TypeUnknown Type = "unknown"
)

// Source identifies which cascade layer produced a result.
type Source string

const (
	SourceExactRule    Source = "exact_rule"
	SourceSynonym      Source = "synonym_expansion"
	SourceTemplate     Source = "template_match"
	SourceLearnedCache Source = "learned_cache"
	SourceLLM          Source = "llm_fallback"
)

// Slot keys used in the LLM extraction map and in slot JSON payloads.
const (
	SlotAmount   = "amount"
	SlotCategory = "category"
	SlotMerchant = "merchant"
	SlotTarget   = "target"
	SlotTime     = "time"
	SlotField    = "field"
)

// Result is the outcome of recognizing one utterance.
type Result struct {
	// Type of the recognized intent; [TypeUnknown] when recognition failed.
	Type Type

	// Confidence in [0, 1].
	Confidence float64

	// Slots holds the extracted parameters as the typed variant for Type.
	// Nil when the intent carries no parameters.
	Slots Slots

	// Source names the cascade layer that produced this result.
	Source Source

	// Input is the normalized utterance the result was derived from.
	Input string
}

// Unknown returns the explicit unrecognized result for the given input.
func Unknown(input string) Result {
	return Result{Type: TypeUnknown, Source: SourceLLM, Input: input}
}
