// Package store persists user accounts, match statistics and access
// lists in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// User is one registered account row.
type User struct {
	Name         string
	LastLoginID  string
	PasswordHash string
	RegisterDate time.Time
	Stats        Stats
}

// Stats aggregates a user's match history.
type Stats struct {
	Wins         int
	Defeats      int
	Matches      int
	LongestMatch int // seconds
	Hits         int
	Misses       int
}

// BlacklistEntry bans a user name together with the client id it last
// connected from.
type BlacklistEntry struct {
	Name string
	UID  string
}

// Permission is an admin access level. Lower is stronger.
type Permission int16

const PermissionAdmin Permission = 0

// WhitelistEntry grants a user name elevated permissions.
type WhitelistEntry struct {
	Name       string
	Permission Permission
}

// Store wraps a pgx connection pool for battleship persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a Store handle.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing connection pool, mainly for tests.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// DeleteAllData wipes every table: accounts, bans and permissions.
// Backs the admin "delete-data" command.
func (s *Store) DeleteAllData(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE users, blacklist, whitelist`)
	if err != nil {
		return fmt.Errorf("wiping data: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool returns the underlying pgx pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
