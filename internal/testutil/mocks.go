package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/SuperWhiteDev/BattleShip/internal/store"
)

// MemoryStore — in-memory имплементация store.Store для unit тестов.
// Не требует реального PostgreSQL.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*store.User
	blacklist map[string]store.BlacklistEntry
	whitelist map[string]store.WhitelistEntry
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*store.User),
		blacklist: make(map[string]store.BlacklistEntry),
		whitelist: make(map[string]store.WhitelistEntry),
	}
}

// GetUser получает пользователя по имени. Возвращает nil, nil если не найден.
func (m *MemoryStore) GetUser(_ context.Context, name string) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}

	// Возвращаем копию чтобы избежать race conditions
	cp := *u
	return &cp, nil
}

// CreateUser создаёт нового пользователя.
func (m *MemoryStore) CreateUser(_ context.Context, name, passwordHash, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := m.users[key]; ok {
		return fmt.Errorf("user %q already exists", name)
	}
	m.users[key] = &store.User{
		Name:         key,
		LastLoginID:  uid,
		PasswordHash: passwordHash,
		RegisterDate: time.Now(),
	}
	return nil
}

// UpdateLastLogin обновляет идентификатор последнего входа.
func (m *MemoryStore) UpdateLastLogin(_ context.Context, name, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("user %q not found", name)
	}
	u.LastLoginID = uid
	return nil
}

// DeleteUser удаляет пользователя.
func (m *MemoryStore) DeleteUser(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	_, ok := m.users[key]
	delete(m.users, key)
	return ok, nil
}

// ListUsers возвращает всех зарегистрированных пользователей.
func (m *MemoryStore) ListUsers(_ context.Context) ([]store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]store.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	slices.SortFunc(users, func(a, b store.User) int {
		return strings.Compare(a.Name, b.Name)
	})
	return users, nil
}

// RecordShot учитывает выстрел в статистике игрока.
func (m *MemoryStore) RecordShot(_ context.Context, name string, hit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[strings.ToLower(name)]
	if !ok {
		return nil
	}
	if hit {
		u.Stats.Hits++
	} else {
		u.Stats.Misses++
	}
	return nil
}

// RecordResult учитывает результат матча для обоих игроков.
func (m *MemoryStore) RecordResult(_ context.Context, winner, loser string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	secs := int(duration.Seconds())
	if w, ok := m.users[strings.ToLower(winner)]; ok {
		w.Stats.Wins++
		w.Stats.Matches++
		w.Stats.LongestMatch = max(w.Stats.LongestMatch, secs)
	}
	if l, ok := m.users[strings.ToLower(loser)]; ok {
		l.Stats.Defeats++
		l.Stats.Matches++
		l.Stats.LongestMatch = max(l.Stats.LongestMatch, secs)
	}
	return nil
}

// ResetStats обнуляет статистику игрока.
func (m *MemoryStore) ResetStats(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[strings.ToLower(name)]; ok {
		u.Stats = store.Stats{}
	}
	return nil
}

// AddToBlacklist банит игрока по имени и идентификатору установки.
func (m *MemoryStore) AddToBlacklist(_ context.Context, name, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	m.blacklist[key] = store.BlacklistEntry{Name: key, UID: uid}
	return nil
}

// RemoveFromBlacklist снимает бан.
func (m *MemoryStore) RemoveFromBlacklist(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	_, ok := m.blacklist[key]
	delete(m.blacklist, key)
	return ok, nil
}

// IsBlacklisted проверяет бан по имени или идентификатору установки.
func (m *MemoryStore) IsBlacklisted(_ context.Context, name, uid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.blacklist[strings.ToLower(name)]; ok {
		return true, nil
	}
	for _, e := range m.blacklist {
		if uid != "" && e.UID == uid {
			return true, nil
		}
	}
	return false, nil
}

// Blacklist возвращает все записи чёрного списка.
func (m *MemoryStore) Blacklist(_ context.Context) ([]store.BlacklistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]store.BlacklistEntry, 0, len(m.blacklist))
	for _, e := range m.blacklist {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b store.BlacklistEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// AddToWhitelist выдаёт игроку права.
func (m *MemoryStore) AddToWhitelist(_ context.Context, name string, permission store.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(name)
	m.whitelist[key] = store.WhitelistEntry{Name: key, Permission: permission}
	return nil
}

// Whitelist возвращает все записи белого списка.
func (m *MemoryStore) Whitelist(_ context.Context) ([]store.WhitelistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]store.WhitelistEntry, 0, len(m.whitelist))
	for _, e := range m.whitelist {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b store.WhitelistEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// DeleteAllData стирает все таблицы разом.
func (m *MemoryStore) DeleteAllData(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.users)
	clear(m.blacklist)
	clear(m.whitelist)
	return nil
}
