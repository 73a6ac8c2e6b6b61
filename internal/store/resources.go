package store

import (
	"context"
	"fmt"
)

// GetResource returns a resource record by id.
func GetResource(ctx context.Context, q Querier, id string) (map[string]any, error) {
	row, err := QueryRow(ctx, q,
		`SELECT id, package_id, name, url, format, restricted, extras, created_at, updated_at
		 FROM resources WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetPackage returns a package record by id or name.
func GetPackage(ctx context.Context, q Querier, idOrName string) (map[string]any, error) {
	row, err := QueryRow(ctx, q,
		`SELECT id, name, title, owner_org, created_at, updated_at
		 FROM packages WHERE id::text = $1 OR name = $1`, idOrName)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// SearchResources returns resources matching the query string against name,
// url and format, with the total match count.
func SearchResources(ctx context.Context, q Querier, query string, limit, offset int) ([]map[string]any, int, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	rows, err := QueryRows(ctx, q,
		`SELECT id, package_id, name, url, format, restricted, extras, created_at, updated_at
		 FROM resources
		 WHERE name ILIKE $1 OR url ILIKE $1 OR format ILIKE $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search resources: %w", err)
	}

	countRow, err := QueryRow(ctx, q,
		`SELECT COUNT(*) AS count FROM resources
		 WHERE name ILIKE $1 OR url ILIKE $1 OR format ILIKE $1`, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}
	count := toInt(countRow["count"])

	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, count, nil
}

// UpdateResourceRestriction rewrites a resource's restriction field and
// returns the previous raw value alongside the updated record. The previous
// value feeds the grant diff after the write, so the read and the write run
// in one transaction with the row locked: a concurrent writer cannot diff
// against the same stale snapshot and re-notify users it never granted.
func (s *Store) UpdateResourceRestriction(ctx context.Context, id string, restricted string) (any, map[string]any, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, updated, err := updateResourceRestriction(ctx, tx, id, restricted)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return prev, updated, nil
}

func updateResourceRestriction(ctx context.Context, q Querier, id string, restricted string) (prev any, updated map[string]any, err error) {
	current, err := QueryRow(ctx, q,
		`SELECT restricted FROM resources WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, nil, err
	}
	prev = current["restricted"]

	_, err = Exec(ctx, q,
		`UPDATE resources SET restricted = $1, updated_at = NOW() WHERE id = $2`,
		restricted, id)
	if err != nil {
		return nil, nil, fmt.Errorf("update resource %s: %w", id, err)
	}

	updated, err = GetResource(ctx, q, id)
	if err != nil {
		return nil, nil, err
	}
	return prev, updated, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
