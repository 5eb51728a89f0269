package store

import (
	"context"
	"fmt"
	"strings"
)

// AddToBlacklist bans a user name. uid records the client id the ban was
// issued against and may be empty when the user was never seen online.
func (s *Store) AddToBlacklist(ctx context.Context, name, uid string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blacklist (user_name, user_id) VALUES ($1, $2)
		 ON CONFLICT (user_name) DO UPDATE SET user_id = EXCLUDED.user_id`,
		strings.ToLower(name), uid,
	)
	if err != nil {
		return fmt.Errorf("blacklisting %q: %w", name, err)
	}
	return nil
}

// RemoveFromBlacklist lifts a ban. Reports whether an entry was
// actually removed.
func (s *Store) RemoveFromBlacklist(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM blacklist WHERE user_name = $1`, strings.ToLower(name),
	)
	if err != nil {
		return false, fmt.Errorf("unbanning %q: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsBlacklisted reports whether the user is banned, matching by name or
// by client id. Checked on every connect and again on every keep-alive.
func (s *Store) IsBlacklisted(ctx context.Context, name, uid string) (bool, error) {
	var banned bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM blacklist
			WHERE user_name = $1 OR ($2 <> '' AND user_id = $2)
		)`,
		strings.ToLower(name), uid,
	).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("checking blacklist for %q: %w", name, err)
	}
	return banned, nil
}

// Blacklist returns every ban entry ordered by name.
func (s *Store) Blacklist(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_name, user_id FROM blacklist ORDER BY user_name`)
	if err != nil {
		return nil, fmt.Errorf("listing blacklist: %w", err)
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		if err := rows.Scan(&e.Name, &e.UID); err != nil {
			return nil, fmt.Errorf("scanning blacklist row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blacklist: %w", err)
	}
	return entries, nil
}

// AddToWhitelist grants a user name the given permission level.
func (s *Store) AddToWhitelist(ctx context.Context, name string, permission Permission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO whitelist (user_name, permission) VALUES ($1, $2)
		 ON CONFLICT (user_name) DO UPDATE SET permission = EXCLUDED.permission`,
		strings.ToLower(name), permission,
	)
	if err != nil {
		return fmt.Errorf("whitelisting %q: %w", name, err)
	}
	return nil
}

// Whitelist returns every permission entry ordered by name.
func (s *Store) Whitelist(ctx context.Context) ([]WhitelistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_name, permission FROM whitelist ORDER BY user_name`)
	if err != nil {
		return nil, fmt.Errorf("listing whitelist: %w", err)
	}
	defer rows.Close()

	var entries []WhitelistEntry
	for rows.Next() {
		var e WhitelistEntry
		if err := rows.Scan(&e.Name, &e.Permission); err != nil {
			return nil, fmt.Errorf("scanning whitelist row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating whitelist: %w", err)
	}
	return entries, nil
}
