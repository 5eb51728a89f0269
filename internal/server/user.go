package server

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/SuperWhiteDev/BattleShip/internal/game"
	"github.com/SuperWhiteDev/BattleShip/internal/protocol"
)

// User is one admitted player. It pairs the socket with the identity
// the client announced and carries the auth state machine. Implements
// game.Player.
type User struct {
	conn *Connection
	id   string // server-side connection id, for logs
	name string
	uid  string // client install id from USERNAME_AND_ID

	state        atomic.Int32
	authAttempts int // touched only by the connection task

	looking atomic.Bool
	session atomic.Pointer[game.Session]
}

// NewUser wraps a fresh connection. The state starts at INITIAL; the
// identity arrives with the USERNAME_AND_ID handshake.
func NewUser(conn *Connection) *User {
	return &User{
		conn: conn,
		id:   uuid.NewString(),
	}
}

// setIdentity stores what the handshake announced. Called once by the
// connection task before the user enters the table.
func (u *User) setIdentity(name, uid string) {
	u.name = name
	u.uid = uid
}

// ID returns the server-assigned connection id.
func (u *User) ID() string {
	return u.id
}

// Name returns the name the client announced.
func (u *User) Name() string {
	return u.name
}

// UID returns the client-side install id.
func (u *User) UID() string {
	return u.uid
}

// IP returns the client's remote address.
func (u *User) IP() string {
	return u.conn.IP()
}

// State returns the current auth state.
func (u *User) State() ConnectionState {
	return ConnectionState(u.state.Load())
}

// SetState advances the auth state machine.
func (u *User) SetState(s ConnectionState) {
	u.state.Store(int32(s))
}

// Send writes one packet to the client.
func (u *User) Send(p protocol.Packet) bool {
	return u.conn.Send(p)
}

// Connected reports whether the socket is still open.
func (u *User) Connected() bool {
	return u.conn.Connected()
}

// Disconnect closes the connection. Idempotent.
func (u *User) Disconnect() {
	u.conn.Disconnect()
}

// LookingForSession reports whether the user sits in the matchmaking
// queue.
func (u *User) LookingForSession() bool {
	return u.looking.Load()
}

// SetLookingForSession moves the user in or out of the queue.
func (u *User) SetLookingForSession(v bool) {
	u.looking.Store(v)
}

// Session returns the session the user is seated in, or nil.
func (u *User) Session() *game.Session {
	return u.session.Load()
}

// SetSession seats the user in a session (nil clears).
func (u *User) SetSession(s *game.Session) {
	u.session.Store(s)
}
