package membership

import (
	"context"
	"errors"
	"fmt"

	"restricted-backend/internal/store"
)

// StoreLookup answers membership queries from the organization tables.
type StoreLookup struct {
	q store.Querier
}

func NewStoreLookup(q store.Querier) *StoreLookup {
	return &StoreLookup{q: q}
}

// OrganizationsForUser returns the organizations the user can read. Any
// membership capacity grants read; sysadmins are handled upstream by the
// privileged-viewer check, not here.
func (l *StoreLookup) OrganizationsForUser(ctx context.Context, identity string) ([]Organization, error) {
	rows, err := store.QueryRows(ctx, l.q,
		`SELECT o.id, o.name
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_name = $1`, identity)
	if err != nil {
		return nil, fmt.Errorf("organizations for %s: %w", identity, err)
	}

	orgs := make([]Organization, 0, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		name, _ := row["name"].(string)
		if id != "" && name != "" {
			orgs = append(orgs, Organization{ID: id, Name: name})
		}
	}
	return orgs, nil
}

// CanManagePackage reports whether the identity may manage the package:
// membership in the owning organization with editor or admin capacity.
// Sysadmin bypass happens in the handler, before this is consulted.
func (l *StoreLookup) CanManagePackage(ctx context.Context, identity, packageID string) (bool, error) {
	if identity == "" {
		return false, nil
	}
	row, err := store.QueryRow(ctx, l.q,
		`SELECT COUNT(*) AS count
		 FROM packages p
		 JOIN organization_members m ON m.org_id = p.owner_org
		 WHERE p.id = $1 AND m.user_name = $2 AND m.capacity IN ('admin', 'editor')`,
		packageID, identity)
	if err != nil {
		return false, fmt.Errorf("manage check for %s on %s: %w", identity, packageID, err)
	}
	count, _ := row["count"].(int64)
	return count > 0, nil
}

// PackageOwnerOrg returns the owning organization id for a package, empty
// when the package is unowned.
func (l *StoreLookup) PackageOwnerOrg(ctx context.Context, packageID string) (string, error) {
	row, err := store.QueryRow(ctx, l.q,
		`SELECT owner_org FROM packages WHERE id = $1`, packageID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("package owner for %s: %w", packageID, err)
	}
	ownerOrg, _ := row["owner_org"].(string)
	return ownerOrg, nil
}
