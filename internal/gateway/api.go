package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/disambig"
	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/internal/learning"
	"github.com/ledgervoice/ledgervoice/internal/observe"
)

// PatternLearner receives per-utterance feedback on recognized intents.
type PatternLearner interface {
	Confirm(ctx context.Context, text string)
	Reject(ctx context.Context, text string)
	Correct(ctx context.Context, text string, corrected intent.Result)
}

// FeedbackSink relabels collected training samples from user feedback.
type FeedbackSink interface {
	FeedbackByInput(ctx context.Context, text string, fb learning.Feedback, correctedType intent.Type) bool
}

// feedbackRequest is the wire form of POST /v1/feedback.
type feedbackRequest struct {
	// Utterance is the raw text the feedback is about.
	Utterance string `json:"utterance"`
	// Feedback is one of confirm, modify, cancel, retry, executed.
	Feedback learning.Feedback `json:"feedback"`
	// Corrected carries the user's correction for modify feedback.
	Corrected *struct {
		Type  intent.Type    `json:"type"`
		Slots map[string]any `json:"slots,omitempty"`
	} `json:"corrected,omitempty"`
}

type feedbackResponse struct {
	// Sampled reports whether a collected sample matched the utterance.
	Sampled bool `json:"sampled"`
}

// feedbackHandler routes user reactions into the two learning surfaces: the
// learned pattern cache and the sample collector.
type feedbackHandler struct {
	patterns PatternLearner
	sink     FeedbackSink
}

func (h *feedbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Utterance == "" || req.Feedback == "" {
		http.Error(w, "utterance and feedback are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch req.Feedback {
	case learning.FeedbackConfirm, learning.FeedbackExecuted:
		h.patterns.Confirm(ctx, req.Utterance)
	case learning.FeedbackCancel, learning.FeedbackRetry:
		h.patterns.Reject(ctx, req.Utterance)
	case learning.FeedbackModify:
		if req.Corrected != nil && req.Corrected.Type != "" {
			// Client-supplied slots arrive as a generic map and must pass
			// validation for the corrected intent type.
			slots, err := intent.SlotsFromMap(req.Corrected.Type, req.Corrected.Slots)
			if err != nil {
				http.Error(w, "invalid corrected slots", http.StatusBadRequest)
				return
			}
			h.patterns.Correct(ctx, req.Utterance, intent.Result{
				Type:  req.Corrected.Type,
				Slots: slots,
			})
		}
	default:
		http.Error(w, "unknown feedback kind", http.StatusBadRequest)
		return
	}

	var correctedType intent.Type
	if req.Corrected != nil {
		correctedType = req.Corrected.Type
	}
	sampled := h.sink.FeedbackByInput(ctx, req.Utterance, req.Feedback, correctedType)

	observe.Logger(ctx).Debug("feedback applied",
		"feedback", req.Feedback, "sampled", sampled)
	writeJSON(w, feedbackResponse{Sampled: sampled})
}

// disambigRecord is the wire form of a candidate ledger entry.
type disambigRecord struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Merchant    string    `json:"merchant,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// disambigAction describes the pending action's consequence, used for
// confirmation tiering. Optional.
type disambigAction struct {
	Amount       float64 `json:"amount"`
	FieldsEdited int     `json:"fields_edited"`
	TypeChange   bool    `json:"type_change"`
	Deletion     bool    `json:"deletion"`
}

// disambigRequest is the wire form of POST /v1/disambiguate. The client owns
// the ledger, so it ships the candidate records with the utterance.
type disambigRequest struct {
	Utterance       string           `json:"utterance"`
	Records         []disambigRecord `json:"records"`
	LastMentionedID string           `json:"last_mentioned_id,omitempty"`
	Action          *disambigAction  `json:"action,omitempty"`
}

type disambigCandidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type disambigResponse struct {
	Outcome disambig.Outcome    `json:"outcome"`
	Best    *disambigCandidate  `json:"best,omitempty"`
	Choices []disambigCandidate `json:"choices,omitempty"`
	// Confirmation is the tier the resolved action must clear before it
	// executes. Empty when no record was resolved.
	Confirmation disambig.Tier `json:"confirmation,omitempty"`
}

// disambigHandler resolves referring expressions against client-supplied
// records and grades the pending action's confirmation tier.
type disambigHandler struct{}

func (disambigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req disambigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Utterance == "" {
		http.Error(w, "utterance is required", http.StatusBadRequest)
		return
	}

	records := make([]disambig.Record, len(req.Records))
	for i, rec := range req.Records {
		records[i] = disambig.Record{
			ID:          rec.ID,
			Amount:      rec.Amount,
			Category:    rec.Category,
			Description: rec.Description,
			Merchant:    rec.Merchant,
			CreatedAt:   rec.CreatedAt,
		}
	}

	// Reference detection works on normalized text; clients send raw speech
	// transcripts with casing and punctuation.
	refs := disambig.DetectReferences(intent.Normalize(req.Utterance))
	res := disambig.Resolve(refs, records, disambig.Context{
		LastMentionedID: req.LastMentionedID,
	})

	resp := disambigResponse{Outcome: res.Outcome}
	for _, c := range res.Choices {
		resp.Choices = append(resp.Choices, disambigCandidate{ID: c.Record.ID, Score: c.Score})
	}
	if res.Best != nil {
		resp.Best = &disambigCandidate{ID: res.Best.Record.ID, Score: res.Best.Score}
		resp.Confirmation = tierFor(req, res)
	}
	writeJSON(w, resp)
}

// tierFor grades the pending action against the resolved record. A confirm
// outcome asks at least a yes/no question regardless of the action's risk.
func tierFor(req disambigRequest, res disambig.Resolution) disambig.Tier {
	signals := disambig.RiskSignals{
		PreviousAmount: res.Best.Record.Amount,
		RecordAge:      time.Since(res.Best.Record.CreatedAt),
	}
	if req.Action != nil {
		signals.Amount = req.Action.Amount
		signals.FieldsEdited = req.Action.FieldsEdited
		signals.TypeChange = req.Action.TypeChange
		signals.Deletion = req.Action.Deletion
	}

	tier := disambig.TierFor(signals)
	if res.Outcome == disambig.OutcomeConfirm && tierRank[tier] < tierRank[disambig.TierStandard] {
		return disambig.TierStandard
	}
	return tier
}

var tierRank = map[disambig.Tier]int{
	disambig.TierNone:     0,
	disambig.TierLight:    1,
	disambig.TierStandard: 2,
	disambig.TierStrict:   3,
	disambig.TierBlocked:  4,
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}
