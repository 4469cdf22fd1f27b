package cancel

import "sync"

// Registry tracks the tokens of in-flight work owned by one client so
// that all of it can be cancelled together.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
	closed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Add registers t and reports whether it was accepted. Adding the same
// token twice is a no-op. A closed registry refuses every token.
func (r *Registry) Add(t *Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.tokens[t.ID()] = t

	return true
}

// Remove unregisters t.
func (r *Registry) Remove(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, t.ID())
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens)
}

// CancelAll cancels every registered token with reason, clears the
// registry and returns how many tokens were newly cancelled.
func (r *Registry) CancelAll(reason string) int {
	return r.cancelAll(reason, false)
}

// Close cancels every registered token like CancelAll and makes later
// calls to Add fail.
func (r *Registry) Close(reason string) int {
	return r.cancelAll(reason, true)
}

func (r *Registry) cancelAll(reason string, closing bool) int {
	r.mu.Lock()
	r.closed = r.closed || closing
	tokens := make([]*Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		tokens = append(tokens, t)
	}
	clear(r.tokens)
	r.mu.Unlock()

	var n int
	for _, t := range tokens {
		if t.Cancel(reason) {
			n++
		}
	}

	return n
}
