package server

import (
	"errors"
	"strings"
	"sync"

	"github.com/SuperWhiteDev/BattleShip/internal/game"
)

// Admission failures, mapped to wire errors by the handler.
var (
	ErrNameInUse   = errors.New("name already in use")
	ErrNameTooLong = errors.New("name too long")
	ErrUsersLimit  = errors.New("users limit reached")
)

// UserTable holds the admitted users, keyed by lowercase name. It is
// the matchmaker's candidate list and the admin commands' view of who
// is online.
type UserTable struct {
	maxUsers   int
	maxNameLen int

	mu    sync.RWMutex
	users map[string]*User
}

// NewUserTable creates an empty table with the given admission limits.
// Zero or negative limits disable the respective check.
func NewUserTable(maxUsers, maxNameLen int) *UserTable {
	return &UserTable{
		maxUsers:   maxUsers,
		maxNameLen: maxNameLen,
		users:      make(map[string]*User),
	}
}

// Add admits a user, enforcing name uniqueness, the name length limit
// and the user limit atomically.
func (t *UserTable) Add(u *User) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxNameLen > 0 && len(u.Name()) > t.maxNameLen {
		return ErrNameTooLong
	}
	key := strings.ToLower(u.Name())
	if _, ok := t.users[key]; ok {
		return ErrNameInUse
	}
	if t.maxUsers > 0 && len(t.users) >= t.maxUsers {
		return ErrUsersLimit
	}

	t.users[key] = u
	return nil
}

// Remove drops the user from the table. Reports whether it was present;
// a rejected duplicate never evicts the original holder of the name.
func (t *UserTable) Remove(u *User) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strings.ToLower(u.Name())
	if t.users[key] != u {
		return false
	}
	delete(t.users, key)
	return true
}

// Get returns the online user with the given name, or nil.
func (t *UserTable) Get(name string) *User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users[strings.ToLower(name)]
}

// List returns a snapshot of the online users.
func (t *UserTable) List() []*User {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]*User, 0, len(t.users))
	for _, u := range t.users {
		users = append(users, u)
	}
	return users
}

// Players adapts the table to the matchmaker's candidate list.
func (t *UserTable) Players() []game.Player {
	t.mu.RLock()
	defer t.mu.RUnlock()

	players := make([]game.Player, 0, len(t.users))
	for _, u := range t.users {
		players = append(players, u)
	}
	return players
}

// Len reports how many users are online.
func (t *UserTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// Full reports whether the user limit is reached. Used by the accept
// path to reject before reading the handshake.
func (t *UserTable) Full() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxUsers > 0 && len(t.users) >= t.maxUsers
}
