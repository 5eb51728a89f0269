package game

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// MinPlayersInSession is how many candidates a session needs.
const MinPlayersInSession = 2

// PlayerLister enumerates the currently connected players. Implemented
// by the server's user table.
type PlayerLister interface {
	Players() []Player
}

// Matchmaker pairs players looking for an opponent into sessions.
// Pairing is serialized by a mutex so concurrent triggers cannot seat
// the same player twice.
type Matchmaker struct {
	players  PlayerLister
	registry *Registry
	mu       sync.Mutex
}

func NewMatchmaker(players PlayerLister, registry *Registry) *Matchmaker {
	return &Matchmaker{
		players:  players,
		registry: registry,
	}
}

// Find marks p as looking for a session and tries to seat a game with
// whoever else is waiting. It reports whether a session started; when
// it did not, p stays queued and later triggers reconsider it.
func (m *Matchmaker) Find(ctx context.Context, p Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Session() != nil {
		return false
	}
	p.SetLookingForSession(true)

	candidates := []Player{p}
	for _, other := range m.players.Players() {
		if len(candidates) == MinPlayersInSession {
			break
		}
		if other == p || other.Session() != nil || !other.LookingForSession() || !other.Connected() {
			continue
		}
		candidates = append(candidates, other)
	}
	if len(candidates) < MinPlayersInSession {
		return false
	}

	s := m.registry.Start(ctx, candidates)
	if s == nil {
		slog.Warn("session limit reached, players keep waiting", "waiting", len(candidates))
		return false
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name()
	}
	slog.Info("players matched", "session", s.ID(), "players", strings.Join(names, " vs "))

	for _, c := range candidates {
		c.Send(protocol.NewSessionStarted(s.ID()))
	}
	return true
}

// Leave takes p out of the queue without touching any session it may
// already be in.
func (m *Matchmaker) Leave(p Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.SetLookingForSession(false)
}
