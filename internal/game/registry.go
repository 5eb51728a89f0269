package game

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/SuperWhiteDev/BattleShip/internal/metrics"
)

// Registry tracks live sessions, hands out session ids and enforces the
// configured session limit.
type Registry struct {
	stats StatsRecorder
	mets  *metrics.Metrics
	max   int

	nextID atomic.Int32

	mu       sync.RWMutex
	sessions map[int32]*Session
}

// NewRegistry creates an empty registry. max <= 0 disables the session
// limit; stats and mets may be nil.
func NewRegistry(stats StatsRecorder, mets *metrics.Metrics, max int) *Registry {
	return &Registry{
		stats:    stats,
		mets:     mets,
		max:      max,
		sessions: make(map[int32]*Session),
	}
}

// Start creates a session seating the given players, points them at it
// and launches the session task. Returns nil when the session limit is
// reached.
func (r *Registry) Start(ctx context.Context, players []Player) *Session {
	r.mu.Lock()
	if r.max > 0 && len(r.sessions) >= r.max {
		r.mu.Unlock()
		return nil
	}
	id := r.nextID.Add(1) - 1
	s := newSession(id, players, r.stats, r.mets, r.drop)
	r.sessions[id] = s
	r.mu.Unlock()

	for _, p := range players {
		p.SetSession(s)
		p.SetLookingForSession(false)
	}

	r.mets.SessionStarted()
	go s.run(ctx)
	return s
}

// drop runs as the session's teardown callback.
func (r *Registry) drop(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID())
	r.mu.Unlock()
	r.mets.SessionClosed()
}

// Get returns the live session with the given id, or nil.
func (r *Registry) Get(id int32) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// List returns the live sessions ordered by id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	slices.SortFunc(sessions, func(a, b *Session) int { return cmp.Compare(a.ID(), b.ID()) })
	return sessions
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll terminates every live session. Used on shutdown.
func (r *Registry) StopAll() {
	for _, s := range r.List() {
		s.Stop()
	}
}
