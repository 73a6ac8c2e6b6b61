package restriction

import (
	"context"
	"errors"
	"fmt"

	"restricted-backend/internal/membership"
)

// ErrMembershipLookup wraps failures from the membership gateway. Callers
// must not coerce it into an allow or a deny; whether to fail open or closed
// is the host's call.
var ErrMembershipLookup = errors.New("membership lookup failed")

// Decision is the outcome of an access evaluation. Reason is set only on
// denial and names the unmet policy tier; it never contains allowlist
// contents.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// PackageContext carries the facts about the owning package needed for
// evaluation.
type PackageContext struct {
	OwnerOrgID string
}

// recognized reports whether the level is one of the defined tiers.
// Unrecognized levels evaluate as registered.
func recognized(l Level) bool {
	switch l {
	case LevelPublic, LevelRegistered, LevelOnlyAllowedUsers, LevelAnyOrganization, LevelSameOrganization:
		return true
	}
	return false
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Evaluate applies the ordered access policy for one resource. identity is
// the requester's username, empty for anonymous. The tiers apply in order
// and the first one that resolves decides:
//
//  1. public (or unset) always allows
//  2. anonymous is denied at every stricter level
//  3. registered (or an unrecognized level) allows any authenticated user
//  4. an explicit allowed_users grant allows regardless of level
//  5. only_allowed_users without a grant denies
//  6. a named allowed organization the user belongs to allows
//  7. no read-permitted organizations at all denies
//  8. any_organization allows
//  9. same_organization requires the package's owning org
//
// A gateway failure returns a wrapped ErrMembershipLookup and a zero
// Decision; it is never silently mapped to allow or deny.
func Evaluate(ctx context.Context, identity string, meta Metadata, pkg PackageContext, lookup membership.Lookup) (Decision, error) {
	if meta.Level == LevelPublic || meta.Level == "" {
		return allow(), nil
	}

	if identity == "" {
		return deny("Resource access restricted to registered users"), nil
	}
	if meta.Level == LevelRegistered || !recognized(meta.Level) {
		return allow(), nil
	}

	// Explicit grants override the level so an admin can hand-pick
	// exceptions even under only_allowed_users or same_organization.
	if meta.UserAllowed(identity) {
		return allow(), nil
	}
	if meta.Level == LevelOnlyAllowedUsers {
		return deny("Resource access restricted to allowed users only"), nil
	}

	orgs, err := lookup.OrganizationsForUser(ctx, identity)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrMembershipLookup, err)
	}

	// Membership is recorded by name in the allowlist path and by id in
	// the ownership path, so both are matched below.
	for _, org := range orgs {
		if meta.OrganizationAllowed(org.Name) {
			return allow(), nil
		}
	}

	if len(orgs) == 0 {
		return deny("Resource access restricted to members of an organization"), nil
	}

	if meta.Level == LevelAnyOrganization {
		return allow(), nil
	}

	if meta.Level == LevelSameOrganization {
		for _, org := range orgs {
			if org.ID == pkg.OwnerOrgID {
				return allow(), nil
			}
		}
	}

	return deny(fmt.Sprintf(
		"Resource access restricted to same organization (%s) members", pkg.OwnerOrgID)), nil
}

// EvaluateRaw parses the resource's raw restriction field and evaluates it.
// Primary entry point for callers holding the raw record.
func EvaluateRaw(ctx context.Context, identity string, resource map[string]any, pkg PackageContext, lookup membership.Lookup) (Decision, error) {
	return Evaluate(ctx, identity, Parse(resource), pkg, lookup)
}
