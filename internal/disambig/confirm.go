package disambig

import (
	"math"
	"time"
)

// Tier is the confirmation level an action must clear before executing.
// Tiers escalate on risk signals independent of match confidence, so a
// high-confidence match on a consequential edit still gets confirmed.
type Tier string

const (
	// TierNone executes silently.
	TierNone Tier = "none"
	// TierLight announces the action and proceeds unless the user objects.
	TierLight Tier = "light"
	// TierStandard asks a yes/no question before executing.
	TierStandard Tier = "standard"
	// TierStrict requires the user to restate the key detail.
	TierStrict Tier = "strict"
	// TierBlocked refuses voice execution; the action needs the screen.
	TierBlocked Tier = "blocked"
)

// RiskSignals describes the consequence of the pending action.
type RiskSignals struct {
	// Amount is the absolute amount the action touches.
	Amount float64
	// PreviousAmount is the amount before a modification, zero when the
	// action creates a record.
	PreviousAmount float64
	// RecordAge is how old the touched record is.
	RecordAge time.Duration
	// FieldsEdited counts the fields a modification changes.
	FieldsEdited int
	// TypeChange marks edits that recategorize the record's kind, e.g.
	// expense to income.
	TypeChange bool
	// Deletion marks destructive actions.
	Deletion bool
}

// Risk escalation boundaries.
const (
	largeAmount   = 500.0
	notableAmount = 100.0
	bigRatio      = 3.0
	notableRatio  = 1.5
	oldRecord     = 30 * 24 * time.Hour
	agingRecord   = 7 * 24 * time.Hour
)

// TierFor maps risk signals to a confirmation tier. Each signal contributes
// escalation points; the sum picks the tier.
func TierFor(s RiskSignals) Tier {
	points := 0

	switch {
	case s.Amount >= largeAmount:
		points += 2
	case s.Amount >= notableAmount:
		points++
	}

	if r := changeRatio(s.PreviousAmount, s.Amount); r >= bigRatio {
		points += 2
	} else if r >= notableRatio {
		points++
	}

	switch {
	case s.RecordAge >= oldRecord:
		points += 2
	case s.RecordAge >= agingRecord:
		points++
	}

	switch {
	case s.FieldsEdited >= 3:
		points += 2
	case s.FieldsEdited == 2:
		points++
	}

	if s.TypeChange {
		points += 2
	}
	if s.Deletion {
		points += 2
	}

	switch {
	case points == 0:
		return TierNone
	case points == 1:
		return TierLight
	case points <= 3:
		return TierStandard
	case points <= 5:
		return TierStrict
	default:
		return TierBlocked
	}
}

// changeRatio is how many times larger the bigger of the two amounts is.
// Zero previous amount means a creation, which carries no relative change.
func changeRatio(prev, next float64) float64 {
	if prev == 0 || next == 0 {
		return 0
	}
	r := next / prev
	if r < 1 {
		r = 1 / r
	}
	return math.Abs(r)
}
