// Package respond turns recognized intents into spoken reply text. Replies
// come from the LLM collaborator when one is configured and degrade to
// per-intent templates when it is not, or when it fails.
package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/internal/session"
	"github.com/ledgervoice/ledgervoice/pkg/provider/llm"
)

const defaultTimeout = 10 * time.Second

const responseSystemPrompt = `You are the voice of a personal finance assistant.
Reply to the user's recognized request in one or two short spoken sentences.
Plain conversational language only: no markdown, no lists, no emoji.
Confirm what was done or what you found. If the intent is unknown, ask the
user to rephrase.`

// Responder generates spoken replies. It implements [session.Responder].
type Responder struct {
	llm     llm.Provider
	timeout time.Duration
	logger  *slog.Logger
	metrics *observe.Metrics
}

var _ session.Responder = (*Responder)(nil)

// Option configures a [Responder] during construction.
type Option func(*Responder)

// WithTimeout caps the LLM completion call. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(r *Responder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Responder) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New creates a responder backed by provider. provider may be nil, in which
// case every reply comes from the templates.
func New(provider llm.Provider, opts ...Option) *Responder {
	r := &Responder{
		llm:     provider,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Respond produces the spoken reply for a recognized intent. LLM failures
// are absorbed into a template reply; the error return is reserved for the
// [session.Responder] contract and is always nil.
func (r *Responder) Respond(ctx context.Context, res intent.Result) (string, error) {
	if r.llm == nil {
		return Template(res), nil
	}

	ctx, span := observe.StartSpan(ctx, "respond.generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: responseSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: describe(res)},
		},
		Temperature: 0.7,
		MaxTokens:   120,
	})
	if err != nil {
		r.logger.Warn("llm response generation failed", "error", err)
		r.metrics.RecordProviderError(ctx, "llm", "response")
		return Template(res), nil
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return Template(res), nil
	}
	return reply, nil
}

// describe renders the recognition result as the LLM's user message.
func describe(res intent.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user said: %q\n", res.Input)
	fmt.Fprintf(&b, "Recognized intent: %s (confidence %.2f)\n", res.Type, res.Confidence)
	if res.Slots != nil {
		if details, err := json.Marshal(res.Slots); err == nil && string(details) != "{}" {
			fmt.Fprintf(&b, "Extracted details: %s\n", details)
		}
	}
	return b.String()
}

// Template is the deterministic reply for a recognition result, used when no
// LLM is configured and as the fallback when one fails.
func Template(res intent.Result) string {
	switch res.Type {
	case intent.TypeCreate:
		s, _ := res.Slots.(intent.CreateSlots)
		switch {
		case s.Amount != 0 && s.Category != "":
			return fmt.Sprintf("Logged %v for %s.", s.Amount, s.Category)
		case s.Amount != 0:
			return fmt.Sprintf("Logged %v.", s.Amount)
		default:
			return "Got it, that's logged."
		}
	case intent.TypeModify:
		return "Done, I've updated it."
	case intent.TypeDelete:
		return "Okay, it's deleted."
	case intent.TypeQuery:
		return "Let me pull that up for you."
	case intent.TypeNavigate:
		return "Opening that now."
	case intent.TypeSetPreference:
		return "Your preference is saved."
	case intent.TypeConfirm:
		return "Done."
	case intent.TypeCancel:
		return "Cancelled."
	case intent.TypeHelp:
		return "You can say things like: add an expense, check my balance, or go to budgets."
	default:
		return "I'm not sure I understood. Could you rephrase that?"
	}
}
