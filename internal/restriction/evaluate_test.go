package restriction

import (
	"context"
	"errors"
	"testing"

	"restricted-backend/internal/membership"
)

// fakeLookup is an in-memory membership gateway.
type fakeLookup struct {
	orgs map[string][]membership.Organization
	err  error
}

func (f *fakeLookup) OrganizationsForUser(_ context.Context, identity string) ([]membership.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orgs[identity], nil
}

func (f *fakeLookup) PackageOwnerOrg(_ context.Context, _ string) (string, error) {
	return "", nil
}

func mustEvaluate(t *testing.T, identity string, meta Metadata, pkg PackageContext, lookup membership.Lookup) Decision {
	t.Helper()
	decision, err := Evaluate(context.Background(), identity, meta, pkg, lookup)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	return decision
}

func TestEvaluate_PublicAllowsEveryone(t *testing.T) {
	lookup := &fakeLookup{}
	for _, identity := range []string{"", "alice"} {
		meta := Metadata{Level: LevelPublic}
		if d := mustEvaluate(t, identity, meta, PackageContext{}, lookup); !d.Allowed {
			t.Fatalf("public should allow identity %q, got deny: %s", identity, d.Reason)
		}
	}
}

func TestEvaluate_EmptyLevelAllowsAnonymous(t *testing.T) {
	d := mustEvaluate(t, "", Metadata{Level: ""}, PackageContext{}, &fakeLookup{})
	if !d.Allowed {
		t.Fatalf("empty level should behave as public, got deny: %s", d.Reason)
	}
}

func TestEvaluate_RegisteredDeniesAnonymous(t *testing.T) {
	d := mustEvaluate(t, "", Metadata{Level: LevelRegistered}, PackageContext{}, &fakeLookup{})
	if d.Allowed {
		t.Fatal("anonymous should be denied at registered level")
	}
	if d.Reason != "Resource access restricted to registered users" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestEvaluate_RegisteredAllowsAnyIdentity(t *testing.T) {
	d := mustEvaluate(t, "mallory", Metadata{Level: LevelRegistered}, PackageContext{}, &fakeLookup{})
	if !d.Allowed {
		t.Fatalf("registered should allow any authenticated identity, got: %s", d.Reason)
	}
}

func TestEvaluate_UnrecognizedLevelTreatedAsRegistered(t *testing.T) {
	meta := Metadata{Level: Level("confidential")}
	if d := mustEvaluate(t, "", meta, PackageContext{}, &fakeLookup{}); d.Allowed {
		t.Fatal("anonymous should still be denied for unrecognized level")
	}
	if d := mustEvaluate(t, "alice", meta, PackageContext{}, &fakeLookup{}); !d.Allowed {
		t.Fatalf("authenticated identity should pass unrecognized level, got: %s", d.Reason)
	}
}

func TestEvaluate_OnlyAllowedUsers(t *testing.T) {
	meta := Metadata{Level: LevelOnlyAllowedUsers, AllowedUsers: []string{"alice"}}
	lookup := &fakeLookup{}

	if d := mustEvaluate(t, "alice", meta, PackageContext{}, lookup); !d.Allowed {
		t.Fatalf("listed user should be allowed, got: %s", d.Reason)
	}

	d := mustEvaluate(t, "bob", meta, PackageContext{}, lookup)
	if d.Allowed {
		t.Fatal("unlisted user should be denied")
	}
	if d.Reason != "Resource access restricted to allowed users only" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}

	if d := mustEvaluate(t, "", meta, PackageContext{}, lookup); d.Allowed {
		t.Fatal("anonymous should be denied")
	}
}

func TestEvaluate_ExplicitGrantOverridesLevel(t *testing.T) {
	// alice is in no org at all, but the allowlist names her.
	meta := Metadata{Level: LevelSameOrganization, AllowedUsers: []string{"alice"}}
	d := mustEvaluate(t, "alice", meta, PackageContext{OwnerOrgID: "org-1"}, &fakeLookup{})
	if !d.Allowed {
		t.Fatalf("explicit grant must override same_organization, got: %s", d.Reason)
	}
}

func TestEvaluate_NoOrganizationsDenied(t *testing.T) {
	meta := Metadata{Level: LevelAnyOrganization}
	d := mustEvaluate(t, "loner", meta, PackageContext{}, &fakeLookup{})
	if d.Allowed {
		t.Fatal("user in no orgs should be denied")
	}
	if d.Reason != "Resource access restricted to members of an organization" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestEvaluate_AnyOrganizationAllowsAnyMember(t *testing.T) {
	lookup := &fakeLookup{orgs: map[string][]membership.Organization{
		"alice": {{ID: "org-9", Name: "unrelated"}},
	}}
	meta := Metadata{Level: LevelAnyOrganization}
	d := mustEvaluate(t, "alice", meta, PackageContext{OwnerOrgID: "org-1"}, lookup)
	if !d.Allowed {
		t.Fatalf("any org membership should suffice, got: %s", d.Reason)
	}
}

func TestEvaluate_SameOrganization(t *testing.T) {
	lookup := &fakeLookup{orgs: map[string][]membership.Organization{
		"insider":  {{ID: "org-1", Name: "acme"}},
		"outsider": {{ID: "org-2", Name: "globex"}},
	}}
	meta := Metadata{Level: LevelSameOrganization}
	pkg := PackageContext{OwnerOrgID: "org-1"}

	if d := mustEvaluate(t, "insider", meta, pkg, lookup); !d.Allowed {
		t.Fatalf("owner-org member should be allowed, got: %s", d.Reason)
	}

	d := mustEvaluate(t, "outsider", meta, pkg, lookup)
	if d.Allowed {
		t.Fatal("member of unrelated org should be denied")
	}
	if d.Reason != "Resource access restricted to same organization (org-1) members" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestEvaluate_AllowedOrganizationByName(t *testing.T) {
	lookup := &fakeLookup{orgs: map[string][]membership.Organization{
		"alice": {{ID: "org-2", Name: "globex"}},
	}}
	// globex is not the owner org, but it is explicitly allowed by name.
	meta := Metadata{Level: LevelSameOrganization, AllowedOrganizations: []string{"globex"}}
	d := mustEvaluate(t, "alice", meta, PackageContext{OwnerOrgID: "org-1"}, lookup)
	if !d.Allowed {
		t.Fatalf("allowed organization should grant access, got: %s", d.Reason)
	}
}

func TestEvaluate_LookupFailureSurfaced(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("directory unavailable")}
	meta := Metadata{Level: LevelAnyOrganization}

	_, err := Evaluate(context.Background(), "alice", meta, PackageContext{}, lookup)
	if err == nil {
		t.Fatal("expected lookup failure to surface as error")
	}
	if !errors.Is(err, ErrMembershipLookup) {
		t.Fatalf("expected ErrMembershipLookup, got: %v", err)
	}
}

func TestEvaluate_LookupNotConsultedBeforeOrgTiers(t *testing.T) {
	// public, registered and explicit grants must resolve without touching
	// the gateway, so a broken gateway cannot block them.
	lookup := &fakeLookup{err: errors.New("down")}

	cases := []struct {
		identity string
		meta     Metadata
	}{
		{"", Metadata{Level: LevelPublic}},
		{"alice", Metadata{Level: LevelRegistered}},
		{"alice", Metadata{Level: LevelOnlyAllowedUsers, AllowedUsers: []string{"alice"}}},
	}
	for _, tc := range cases {
		d, err := Evaluate(context.Background(), tc.identity, tc.meta, PackageContext{}, lookup)
		if err != nil {
			t.Fatalf("level %s: unexpected gateway call: %v", tc.meta.Level, err)
		}
		if !d.Allowed {
			t.Fatalf("level %s: expected allow, got: %s", tc.meta.Level, d.Reason)
		}
	}
}

func TestEvaluateRaw_ParsesBeforeEvaluating(t *testing.T) {
	resource := map[string]any{
		"restricted": `{"level":"only_allowed_users","allowed_users":"alice"}`,
	}
	d, err := EvaluateRaw(context.Background(), "alice", resource, PackageContext{}, &fakeLookup{})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow for listed user, got: %s", d.Reason)
	}
}
