package disambig

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

func hasRef(refs []Reference, kind ReferenceKind, text string) bool {
	for _, r := range refs {
		if r.Kind == kind && r.Text == text {
			return true
		}
	}
	return false
}

func TestDetectReferences(t *testing.T) {
	t.Parallel()

	refs := DetectReferences("change that to 50")
	if !hasRef(refs, ReferenceAmount, "50") {
		t.Error("missing amount reference 50")
	}
	if !hasRef(refs, ReferenceOrdinal, "that") {
		t.Error("missing deictic reference")
	}

	refs = DetectReferences("delete the coffee from yesterday")
	if !hasRef(refs, ReferenceTemporal, "yesterday") {
		t.Error("missing temporal reference")
	}
	if !hasRef(refs, ReferenceDescriptive, "coffee") {
		t.Error("missing descriptive reference")
	}
}

func TestResolve_AutoResolvesClearWinner(t *testing.T) {
	t.Parallel()

	lunch := Record{ID: "r1", Amount: 45, Category: "lunch", CreatedAt: testNow.Add(-2 * time.Hour)}
	taxi := Record{ID: "r2", Amount: 200, Category: "taxi", CreatedAt: testNow.Add(-24 * time.Hour)}

	res := Resolve(
		DetectReferences("change that to 50"),
		[]Record{lunch, taxi},
		Context{LastMentionedID: "r1", Now: testNow},
	)

	if res.Outcome != OutcomeAuto {
		t.Fatalf("outcome = %v, want auto", res.Outcome)
	}
	if res.Best.Record.ID != "r1" {
		t.Errorf("best = %s, want the lunch record", res.Best.Record.ID)
	}
	if res.Best.Score < 0.85 {
		t.Errorf("best score = %v, want >= 0.85", res.Best.Score)
	}
	if len(res.Choices) != 0 {
		t.Errorf("auto-resolve produced %d clarify choices", len(res.Choices))
	}
}

func TestResolve_NoMatchBelowFloor(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "r1", Amount: 45, Category: "lunch", CreatedAt: testNow.Add(-2 * time.Hour)},
	}
	res := Resolve(DetectReferences("the warranty paperwork"), records, Context{Now: testNow})
	if res.Outcome != OutcomeNoMatch {
		t.Errorf("outcome = %v, want no_match", res.Outcome)
	}

	if res := Resolve(DetectReferences("change that to 50"), nil, Context{Now: testNow}); res.Outcome != OutcomeNoMatch {
		t.Errorf("outcome with no candidates = %v, want no_match", res.Outcome)
	}
}

func TestResolve_ClarifiesBetweenCloseCandidates(t *testing.T) {
	t.Parallel()

	// Two coffees at the same price: descriptive and amount evidence match
	// both, nothing separates them.
	records := []Record{
		{ID: "r1", Amount: 4.5, Category: "coffee", Merchant: "Blue Bottle", CreatedAt: testNow.Add(-3 * time.Hour)},
		{ID: "r2", Amount: 4.5, Category: "coffee", Merchant: "Joe's", CreatedAt: testNow.Add(-26 * time.Hour)},
	}
	res := Resolve(DetectReferences("delete the 4.5 coffee"), records, Context{Now: testNow})

	if res.Outcome != OutcomeClarify {
		t.Fatalf("outcome = %v, want clarify", res.Outcome)
	}
	if len(res.Choices) != 2 {
		t.Errorf("got %d choices, want 2", len(res.Choices))
	}
}

func TestResolve_ClarifyCapsAtThreeChoices(t *testing.T) {
	t.Parallel()

	var records []Record
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		records = append(records, Record{
			ID: id, Amount: 4.5, Category: "coffee", CreatedAt: testNow.Add(-2 * time.Hour),
		})
	}
	res := Resolve(DetectReferences("delete the 4.5 coffee"), records, Context{Now: testNow})

	if res.Outcome != OutcomeClarify {
		t.Fatalf("outcome = %v, want clarify", res.Outcome)
	}
	if len(res.Choices) != 3 {
		t.Errorf("got %d choices, want 3", len(res.Choices))
	}
}

func TestResolve_SingleMidConfidenceNeedsConfirmation(t *testing.T) {
	t.Parallel()

	// Description plus antecedent match on a record that is not the most
	// recent one: over the floor, under the auto bar.
	records := []Record{
		{ID: "r1", Amount: 30, Category: "taxi", CreatedAt: testNow.Add(-48 * time.Hour)},
		{ID: "r2", Amount: 800, Category: "rent", CreatedAt: testNow.Add(-24 * time.Hour)},
	}
	res := Resolve(DetectReferences("change that taxi"),
		records, Context{LastMentionedID: "r1", Now: testNow})

	if res.Outcome != OutcomeConfirm {
		t.Fatalf("outcome = %v, want confirm", res.Outcome)
	}
	if res.Best.Record.ID != "r1" {
		t.Errorf("best = %s, want r1", res.Best.Record.ID)
	}
}

func TestResolve_MerchantFuzzyMatch(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "r1", Amount: 12, Merchant: "Starbucks", CreatedAt: testNow.Add(-1 * time.Hour)},
		{ID: "r2", Amount: 12, Merchant: "Target", CreatedAt: testNow.Add(-2 * time.Hour)},
	}
	// ASR dropped a letter from the merchant name.
	res := Resolve(DetectReferences("delete the 12 at starbuks"), records, Context{Now: testNow})

	if res.Best == nil || res.Best.Record.ID != "r1" {
		t.Fatalf("best = %+v, want the Starbucks record", res.Best)
	}
}

func TestTierFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals RiskSignals
		want    Tier
	}{
		{
			name:    "small fresh single-field edit",
			signals: RiskSignals{Amount: 12, PreviousAmount: 10, FieldsEdited: 1},
			want:    TierNone,
		},
		{
			name:    "notable amount",
			signals: RiskSignals{Amount: 150, PreviousAmount: 140, FieldsEdited: 1},
			want:    TierLight,
		},
		{
			name:    "large amount on an aging record",
			signals: RiskSignals{Amount: 600, PreviousAmount: 580, RecordAge: 10 * 24 * time.Hour},
			want:    TierStandard,
		},
		{
			name: "big relative change plus type change",
			signals: RiskSignals{
				Amount: 300, PreviousAmount: 20,
				FieldsEdited: 1, TypeChange: true,
			},
			want: TierStrict,
		},
		{
			name: "everything at once",
			signals: RiskSignals{
				Amount: 900, PreviousAmount: 50,
				RecordAge: 60 * 24 * time.Hour, FieldsEdited: 4, TypeChange: true,
			},
			want: TierBlocked,
		},
		{
			name:    "deleting an old record",
			signals: RiskSignals{Amount: 40, RecordAge: 45 * 24 * time.Hour, Deletion: true},
			want:    TierStrict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TierFor(tt.signals); got != tt.want {
				t.Errorf("TierFor = %v, want %v", got, tt.want)
			}
		})
	}
}
