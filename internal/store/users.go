package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const userColumns = `user_name, last_login_id, password, register_date,
	stat_wins, stat_defeats, stat_matches, stat_longest_match, stat_hits, stat_misses`

// GetUser retrieves a user by name.
// Returns nil, nil if the user does not exist.
func (s *Store) GetUser(ctx context.Context, name string) (*User, error) {
	name = strings.ToLower(name)
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_name = $1`, name,
	).Scan(&u.Name, &u.LastLoginID, &u.PasswordHash, &u.RegisterDate,
		&u.Stats.Wins, &u.Stats.Defeats, &u.Stats.Matches,
		&u.Stats.LongestMatch, &u.Stats.Hits, &u.Stats.Misses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %q: %w", name, err)
	}
	return &u, nil
}

// CreateUser inserts a new user with the given password hash and the
// client id it registered from.
func (s *Store) CreateUser(ctx context.Context, name, passwordHash, uid string) error {
	name = strings.ToLower(name)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_name, last_login_id, password, register_date)
		 VALUES ($1, $2, $3, $4)`,
		name, uid, passwordHash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("creating user %q: %w", name, err)
	}
	return nil
}

// UpdateLastLogin remembers the client id a user last authorized from,
// so the same device skips the password prompt next time.
func (s *Store) UpdateLastLogin(ctx context.Context, name, uid string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET last_login_id = $1 WHERE user_name = $2`,
		uid, strings.ToLower(name),
	)
	if err != nil {
		return fmt.Errorf("updating last login for %q: %w", name, err)
	}
	return nil
}

// DeleteUser removes a user row entirely. Reports whether the row
// existed.
func (s *Store) DeleteUser(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM users WHERE user_name = $1`, strings.ToLower(name),
	)
	if err != nil {
		return false, fmt.Errorf("deleting user %q: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListUsers returns every registered user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_name`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Name, &u.LastLoginID, &u.PasswordHash, &u.RegisterDate,
			&u.Stats.Wins, &u.Stats.Defeats, &u.Stats.Matches,
			&u.Stats.LongestMatch, &u.Stats.Hits, &u.Stats.Misses); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// RecordShot increments the shooter's hit or miss counter.
func (s *Store) RecordShot(ctx context.Context, name string, hit bool) error {
	query := `UPDATE users SET stat_misses = stat_misses + 1 WHERE user_name = $1`
	if hit {
		query = `UPDATE users SET stat_hits = stat_hits + 1 WHERE user_name = $1`
	}
	if _, err := s.pool.Exec(ctx, query, strings.ToLower(name)); err != nil {
		return fmt.Errorf("recording shot for %q: %w", name, err)
	}
	return nil
}

// RecordResult credits a finished match to both players in one
// transaction: a win and a defeat, a played match each, and the longest
// match watermark.
func (s *Store) RecordResult(ctx context.Context, winner, loser string, duration time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning result transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	seconds := int(duration.Seconds())
	if _, err := tx.Exec(ctx,
		`UPDATE users SET stat_wins = stat_wins + 1,
		        stat_matches = stat_matches + 1,
		        stat_longest_match = GREATEST(stat_longest_match, $2)
		  WHERE user_name = $1`,
		strings.ToLower(winner), seconds); err != nil {
		return fmt.Errorf("recording win for %q: %w", winner, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET stat_defeats = stat_defeats + 1,
		        stat_matches = stat_matches + 1,
		        stat_longest_match = GREATEST(stat_longest_match, $2)
		  WHERE user_name = $1`,
		strings.ToLower(loser), seconds); err != nil {
		return fmt.Errorf("recording defeat for %q: %w", loser, err)
	}

	return tx.Commit(ctx)
}

// ResetStats zeroes a user's statistics but keeps the account.
func (s *Store) ResetStats(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET stat_wins = 0, stat_defeats = 0, stat_matches = 0,
		        stat_longest_match = 0, stat_hits = 0, stat_misses = 0
		  WHERE user_name = $1`, strings.ToLower(name),
	)
	if err != nil {
		return fmt.Errorf("resetting stats for %q: %w", name, err)
	}
	return nil
}
