package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgervoice/ledgervoice/pkg/provider/llm"
)

// defaultLLMTimeout caps the terminal layer so a slow backend degrades to an
// unrecognized result instead of stalling the voice turn.
const defaultLLMTimeout = 10 * time.Second

// recognitionSystemPrompt instructs the model to emit strict JSON. The intent
// list mirrors [Type].
const recognitionSystemPrompt = `You classify utterances spoken to a personal-finance voice assistant.
Respond with a single JSON object and nothing else:
{"intent": "<one of: create, modify, delete, query, navigate, set_preference, confirm, cancel, help, unknown>",
 "confidence": <number between 0 and 1>,
 "slots": {"amount": <number, optional>, "category": "<string, optional>", "merchant": "<string, optional>", "target": "<string, optional>", "time": "<string, optional>", "field": "<string, optional>"}}
Use "unknown" with low confidence when the utterance is not a finance command.`

// llmIntentResponse is the JSON shape the model is asked to produce. Slots
// stay a generic map at this boundary; [SlotsFromMap] validates them into the
// typed variant before they enter a [Result].
type llmIntentResponse struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Slots      map[string]any `json:"slots"`
}

// recognizeWithLLM runs the terminal cascade layer. It never returns an
// error: any failure (transport, timeout, unparseable output) degrades to the
// explicit unrecognized result, and the caller prompts the user to rephrase.
func recognizeWithLLM(ctx context.Context, provider llm.Provider, timeout time.Duration, input string) (Result, error) {
	if provider == nil {
		return Unknown(input), nil
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: recognitionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: input},
		},
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		return Unknown(input), fmt.Errorf("intent: llm fallback: %w", err)
	}

	res, err := parseLLMResponse(resp.Content, input)
	if err != nil {
		return Unknown(input), fmt.Errorf("intent: llm fallback: %w", err)
	}
	return res, nil
}

// parseLLMResponse extracts the intent JSON from raw model output. Models
// routinely wrap JSON in code fences or prose, so the parser locates the
// outermost object instead of unmarshalling the content verbatim.
func parseLLMResponse(content, input string) (Result, error) {
	content = stripCodeFences(content)

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in response %q", truncate(content, 80))
	}

	var parsed llmIntentResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return Result{}, fmt.Errorf("decoding intent JSON: %w", err)
	}

	typ := Type(parsed.Intent)
	switch typ {
	case TypeCreate, TypeModify, TypeDelete, TypeQuery, TypeNavigate,
		TypeSetPreference, TypeConfirm, TypeCancel, TypeHelp, TypeUnknown:
	default:
		return Result{}, fmt.Errorf("unknown intent %q in response", parsed.Intent)
	}

	conf := parsed.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	slots, err := SlotsFromMap(typ, parsed.Slots)
	if err != nil {
		return Result{}, fmt.Errorf("validating slots: %w", err)
	}

	return Result{
		Type:       typ,
		Confidence: conf,
		Slots:      slots,
		Source:     SourceLLM,
		Input:      input,
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
