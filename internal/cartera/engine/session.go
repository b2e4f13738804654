package engine

import (
	"context"
	"sync"
)

type sessionKey struct{}

// WithSession tags ctx with the id of the client session issuing the request. Only
// requests of the same session supersede each other. An empty id leaves ctx untouched.
func WithSession(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFrom returns the session id carried by ctx, or "".
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

type sessionGeneration struct {
	latest   uint64
	inflight int
}

// generations tracks the newest request per session. A session's entry lives only
// while it has requests in flight.
type generations struct {
	mu        sync.Mutex
	bySession map[string]*sessionGeneration
}

func (g *generations) begin(session string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bySession == nil {
		g.bySession = make(map[string]*sessionGeneration)
	}
	s, ok := g.bySession[session]
	if !ok {
		s = &sessionGeneration{}
		g.bySession[session] = s
	}
	s.latest++
	s.inflight++
	return s.latest
}

// current reports whether gen is still the newest request of session.
func (g *generations) current(session string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.bySession[session]
	return ok && s.latest == gen
}

func (g *generations) end(session string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.bySession[session]
	if !ok {
		return
	}
	s.inflight--
	if s.inflight <= 0 {
		delete(g.bySession, session)
	}
}

func (g *generations) tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bySession)
}
