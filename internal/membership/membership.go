package membership

import "context"

// Organization identifies one organization a user can read. Historical data
// references organizations by name in allowlists and by id in package
// ownership, so both are carried.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lookup answers membership questions for the access evaluator. Results are
// fetched per evaluation; freshness is the implementation's responsibility,
// the evaluator never caches.
type Lookup interface {
	// OrganizationsForUser returns the organizations for which the
	// identity holds read permission.
	OrganizationsForUser(ctx context.Context, identity string) ([]Organization, error)

	// PackageOwnerOrg returns the id of the organization owning the
	// package, or empty when the package has no owner.
	PackageOwnerOrg(ctx context.Context, packageID string) (string, error)
}
