// Package game implements matchmaking and the battleship session state
// machine. A session owns its battlefields and drains player events on
// a single task, so no field-level locking is needed.
package game

import (
	"context"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// Player is one connected, authorized participant as seen by the
// matchmaking and session layers.
type Player interface {
	// Name returns the unique user name.
	Name() string
	// Send pushes a packet to the player and reports delivery.
	Send(p protocol.Packet) bool
	// Connected reports whether the underlying socket is still up.
	Connected() bool

	LookingForSession() bool
	SetLookingForSession(bool)
	Session() *Session
	SetSession(*Session)
}

// StatsRecorder persists per-shot and per-match statistics.
// A nil recorder disables stats.
type StatsRecorder interface {
	RecordShot(ctx context.Context, name string, hit bool) error
	RecordResult(ctx context.Context, winner, loser string, duration time.Duration) error
}
