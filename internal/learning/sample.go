// Package learning collects labelled recognition samples and mines recurring
// high-quality ones into learned intent patterns. It closes the loop between
// what users actually say and what the recognition cascade resolves without
// an LLM round trip.
package learning

import (
	"encoding/json"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/intent"
)

// Label classifies how trustworthy a sample's intent assignment is.
type Label string

const (
	// LabelConfirmedPositive marks a sample the user explicitly confirmed.
	LabelConfirmedPositive Label = "confirmed_positive"
	// LabelCorrected marks a sample whose intent the user fixed by hand.
	LabelCorrected Label = "corrected"
	// LabelImplicitPositive marks a sample whose action executed without
	// complaint.
	LabelImplicitPositive Label = "implicit_positive"
	// LabelWeakPositive marks a high-confidence prediction the user never
	// acknowledged either way.
	LabelWeakPositive Label = "weak_positive"
	// LabelNegative marks a sample the user cancelled or rejected.
	LabelNegative Label = "negative"
	// LabelAmbiguous marks a sample that needs review before it can teach
	// anything.
	LabelAmbiguous Label = "ambiguous"
)

// Sample is one recognition outcome captured for learning. ActualType is
// empty until feedback arrives; until then PredictedType is the best guess.
type Sample struct {
	ID              string         `json:"id"`
	RawInput        string         `json:"raw_input"`
	NormalizedInput string         `json:"normalized_input"`
	PredictedType   intent.Type    `json:"predicted_type"`
	ActualType      intent.Type    `json:"actual_type,omitempty"`
	Confidence      float64        `json:"confidence"`
	Source          intent.Source  `json:"source"`
	Label           Label          `json:"label"`
	Slots           intent.Slots   `json:"slots,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// sampleJSON mirrors [Sample] with the slot payload left raw so it can be
// decoded by the sample's predicted intent type.
type sampleJSON struct {
	ID              string          `json:"id"`
	RawInput        string          `json:"raw_input"`
	NormalizedInput string          `json:"normalized_input"`
	PredictedType   intent.Type     `json:"predicted_type"`
	ActualType      intent.Type     `json:"actual_type,omitempty"`
	Confidence      float64         `json:"confidence"`
	Source          intent.Source   `json:"source"`
	Label           Label           `json:"label"`
	Slots           json.RawMessage `json:"slots,omitempty"`
	Context         map[string]any  `json:"context,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// UnmarshalJSON decodes a persisted sample. Slots were predicted alongside
// the intent type, so the predicted type picks the slot variant.
func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	slots, err := intent.DecodeSlots(raw.PredictedType, raw.Slots)
	if err != nil {
		return err
	}
	*s = Sample{
		ID:              raw.ID,
		RawInput:        raw.RawInput,
		NormalizedInput: raw.NormalizedInput,
		PredictedType:   raw.PredictedType,
		ActualType:      raw.ActualType,
		Confidence:      raw.Confidence,
		Source:          raw.Source,
		Label:           raw.Label,
		Slots:           slots,
		Context:         raw.Context,
		Timestamp:       raw.Timestamp,
	}
	return nil
}

// EffectiveType is the intent a sample teaches: the user-supplied one when
// feedback arrived, otherwise the prediction.
func (s *Sample) EffectiveType() intent.Type {
	if s.ActualType != "" {
		return s.ActualType
	}
	return s.PredictedType
}

// QualityScore rates the sample's trustworthiness in [0, 1] at time now.
// Explicit confirmation weighs most, followed by user corrections, high
// prediction confidence and captured context. The whole score decays with
// age down to half weight after a year.
func (s *Sample) QualityScore(now time.Time) float64 {
	// Weights are summed in tenths so threshold comparisons stay exact.
	tenths := 0
	switch s.Label {
	case LabelConfirmedPositive:
		tenths += 5
	case LabelCorrected:
		tenths += 4
	}
	if s.Confidence > 0.9 {
		tenths += 2
	}
	if len(s.Context) > 0 {
		tenths++
	}
	score := float64(tenths) / 10

	days := int(now.Sub(s.Timestamp).Hours() / 24)
	recency := 1 - float64(days)/365
	if recency < 0.5 {
		recency = 0.5
	}
	if recency > 1 {
		recency = 1
	}
	score *= recency

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Feedback is the user reaction a sample can be updated with.
type Feedback string

const (
	// FeedbackConfirm means the user accepted the predicted intent.
	FeedbackConfirm Feedback = "confirm"
	// FeedbackModify means the user corrected the intent.
	FeedbackModify Feedback = "modify"
	// FeedbackCancel means the user abandoned the action.
	FeedbackCancel Feedback = "cancel"
	// FeedbackRetry means the user rephrased instead of confirming.
	FeedbackRetry Feedback = "retry"
	// FeedbackExecuted means the action ran to completion without pushback.
	FeedbackExecuted Feedback = "executed"
)

func labelFor(fb Feedback) Label {
	switch fb {
	case FeedbackConfirm:
		return LabelConfirmedPositive
	case FeedbackModify:
		return LabelCorrected
	case FeedbackCancel:
		return LabelNegative
	case FeedbackExecuted:
		return LabelImplicitPositive
	default:
		return LabelAmbiguous
	}
}
