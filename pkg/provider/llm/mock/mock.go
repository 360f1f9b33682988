// Package mock provides a test double for the llm package interfaces.
//
// Use Provider to inject canned completion responses and inspect the
// requests that were issued:
//
//	p := &mock.Provider{
//	    CompleteResponses: []string{`{"intent":"navigate","confidence":0.9}`},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/ledgervoice/ledgervoice/pkg/provider/llm"
)

// CompleteCall records a single invocation of Provider.Complete.
type CompleteCall struct {
	// Req is the request passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// CompleteResponses are returned content strings, consumed in order.
	// When exhausted, the last entry is reused.
	CompleteResponses []string

	// CompleteErr, if non-nil, is returned by every Complete call.
	CompleteErr error

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Complete records the call and returns the next canned response.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Req: req})
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	content := ""
	if len(p.CompleteResponses) > 0 {
		idx := p.next
		if idx >= len(p.CompleteResponses) {
			idx = len(p.CompleteResponses) - 1
		}
		content = p.CompleteResponses[idx]
		p.next++
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Name returns NameValue or "mock".
func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

// CallCount returns the number of Complete invocations. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
