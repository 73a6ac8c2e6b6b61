package store

import (
	"context"
	"errors"
)

// FindUserByEmail returns the user record for an email address.
func FindUserByEmail(ctx context.Context, q Querier, email string) (map[string]any, error) {
	return QueryRow(ctx, q,
		`SELECT id, name, fullname, email, password_hash, sysadmin, active
		 FROM _users WHERE email = $1`, email)
}

// FindUserByName returns the user record for a username.
func FindUserByName(ctx context.Context, q Querier, name string) (map[string]any, error) {
	return QueryRow(ctx, q,
		`SELECT id, name, fullname, email, password_hash, sysadmin, active
		 FROM _users WHERE name = $1`, name)
}

// UsernameForEmail resolves an email address to a username, skipping
// deactivated accounts. Returns empty when no active user matches.
func UsernameForEmail(ctx context.Context, q Querier, email string) (string, error) {
	row, err := QueryRow(ctx, q,
		`SELECT name FROM _users WHERE email = $1 AND active = true`, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	name, _ := row["name"].(string)
	return name, nil
}

// ListUsers returns the full user directory, ordered by username. Password
// hashes are not included.
func ListUsers(ctx context.Context, q Querier) ([]map[string]any, error) {
	rows, err := QueryRows(ctx, q,
		`SELECT id, name, fullname, email, sysadmin, active, created_at
		 FROM _users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// ContactForUser returns the display name and email used when notifying a
// user of a new grant.
func ContactForUser(ctx context.Context, q Querier, username string) (displayName, email string, err error) {
	row, err := FindUserByName(ctx, q, username)
	if err != nil {
		return "", "", err
	}
	email, _ = row["email"].(string)
	displayName, _ = row["fullname"].(string)
	if displayName == "" {
		displayName, _ = row["name"].(string)
	}
	return displayName, email, nil
}
