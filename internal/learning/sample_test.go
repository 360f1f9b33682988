package learning

import (
	"math"
	"testing"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/intent"
)

func TestSample_QualityScoreWeights(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		sample Sample
		want   float64
	}{
		{
			name: "confirmed with high confidence and context",
			sample: Sample{
				Label:      LabelConfirmedPositive,
				Confidence: 0.95,
				Context:    map[string]any{"screen": "home"},
				Timestamp:  now,
			},
			want: 0.8,
		},
		{
			name: "corrected with high confidence",
			sample: Sample{
				Label:      LabelCorrected,
				Confidence: 0.95,
				Timestamp:  now,
			},
			want: 0.6,
		},
		{
			name: "weak positive with low confidence",
			sample: Sample{
				Label:      LabelWeakPositive,
				Confidence: 0.6,
				Timestamp:  now,
			},
			want: 0,
		},
		{
			name: "negative never scores on label",
			sample: Sample{
				Label:      LabelNegative,
				Confidence: 0.95,
				Timestamp:  now,
			},
			want: 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.sample.QualityScore(now)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("QualityScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSample_QualityScoreDecaysWithAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Sample{
		Label:      LabelConfirmedPositive,
		Confidence: 0.95,
		Context:    map[string]any{"screen": "home"},
		Timestamp:  now.AddDate(-2, 0, 0),
	}

	// Two years old: recency bottoms out at half weight.
	if got, want := s.QualityScore(now), 0.4; math.Abs(got-want) > 1e-9 {
		t.Errorf("QualityScore = %v, want %v", got, want)
	}

	fresh := s
	fresh.Timestamp = now
	if old, recent := s.QualityScore(now), fresh.QualityScore(now); old >= recent {
		t.Errorf("old sample scored %v, not below fresh %v", old, recent)
	}
}

func TestSample_EffectiveTypePrefersFeedback(t *testing.T) {
	t.Parallel()

	s := Sample{PredictedType: intent.TypeQuery}
	if got := s.EffectiveType(); got != intent.TypeQuery {
		t.Errorf("EffectiveType = %v, want query", got)
	}

	s.ActualType = intent.TypeCreate
	if got := s.EffectiveType(); got != intent.TypeCreate {
		t.Errorf("EffectiveType = %v, want create", got)
	}
}
