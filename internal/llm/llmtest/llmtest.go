// Package llmtest provides deterministic Completers for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrExhausted is returned once a Script has no replies left.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply is one scripted completion.
type Reply struct {
	Text string
	Err  error
}

// Script replays its replies in order and records every prompt it saw.
type Script struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

// NewScript returns a Script answering with texts in order.
func NewScript(texts ...string) *Script {
	s := &Script{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Then appends a reply and returns s for chaining.
func (s *Script) Then(text string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, Reply{Text: text, Err: err})
	return s
}

func (s *Script) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", ErrExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Prompts returns the prompts received so far.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Router answers by matching a substring of the prompt, so one stub can
// serve both pipeline stages regardless of call order.
type Router struct {
	mu       sync.Mutex
	routes   []route
	fallback Reply
	calls    int
}

type route struct {
	contains string
	reply    Reply
}

// NewRouter returns a Router whose unmatched prompts get fallback.
func NewRouter(fallback string) *Router {
	return &Router{fallback: Reply{Text: fallback}}
}

// On registers a reply for prompts containing substr. First match wins.
func (r *Router) On(substr, text string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{contains: substr, reply: Reply{Text: text}})
	return r
}

// OnError registers a failure for prompts containing substr.
func (r *Router) OnError(substr string, err error) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{contains: substr, reply: Reply{Err: err}})
	return r
}

func (r *Router) Complete(_ context.Context, prompt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, rt := range r.routes {
		if strings.Contains(prompt, rt.contains) {
			return rt.reply.Text, rt.reply.Err
		}
	}
	return r.fallback.Text, r.fallback.Err
}

// Calls reports how many completions were requested.
func (r *Router) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
