package restriction

import (
	"testing"
)

func TestParse_MissingRestrictionDefaultsToPublic(t *testing.T) {
	meta := Parse(map[string]any{"id": "r1", "name": "data.csv"})
	if meta.Level != LevelPublic {
		t.Fatalf("expected public, got %s", meta.Level)
	}
	if len(meta.AllowedUsers) != 0 {
		t.Fatalf("expected empty allowed_users, got %v", meta.AllowedUsers)
	}
	if meta.AllowedUsers == nil || meta.AllowedOrganizations == nil {
		t.Fatal("expected fully populated metadata, got nil slices")
	}
}

func TestParse_NilResource(t *testing.T) {
	meta := Parse(nil)
	if meta.Level != LevelPublic {
		t.Fatalf("expected public, got %s", meta.Level)
	}
}

func TestParse_DirectStructuredField(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{
			"level":         "only_allowed_users",
			"allowed_users": "alice, bob ,carol",
		},
	})
	if meta.Level != LevelOnlyAllowedUsers {
		t.Fatalf("expected only_allowed_users, got %s", meta.Level)
	}
	if len(meta.AllowedUsers) != 3 {
		t.Fatalf("expected 3 users, got %v", meta.AllowedUsers)
	}
	if meta.AllowedUsers[1] != "bob" {
		t.Fatalf("expected trimmed bob, got %q", meta.AllowedUsers[1])
	}
}

func TestParse_ExtrasField(t *testing.T) {
	meta := Parse(map[string]any{
		"extras": map[string]any{
			"restricted": map[string]any{"level": "registered"},
		},
	})
	if meta.Level != LevelRegistered {
		t.Fatalf("expected registered, got %s", meta.Level)
	}
}

func TestParse_DirectFieldWinsOverExtras(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{"level": "same_organization"},
		"extras": map[string]any{
			"restricted": map[string]any{"level": "registered"},
		},
	})
	if meta.Level != LevelSameOrganization {
		t.Fatalf("expected same_organization from direct field, got %s", meta.Level)
	}
}

func TestParse_JSONStringValue(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": `{"level":"any_organization","allowed_users":"alice,bob"}`,
	})
	if meta.Level != LevelAnyOrganization {
		t.Fatalf("expected any_organization, got %s", meta.Level)
	}
	if len(meta.AllowedUsers) != 2 {
		t.Fatalf("expected 2 users, got %v", meta.AllowedUsers)
	}
}

func TestParse_GarbageStringDefaultsToPublic(t *testing.T) {
	meta := Parse(map[string]any{"restricted": "not json at all {{{"})
	if meta.Level != LevelPublic {
		t.Fatalf("expected public default for garbage, got %s", meta.Level)
	}
	if len(meta.AllowedUsers) != 0 {
		t.Fatalf("expected empty allowed_users, got %v", meta.AllowedUsers)
	}
}

func TestParse_WhitespaceOnlyEntriesDropped(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{
			"level":         "only_allowed_users",
			"allowed_users": "alice,  ,,bob,",
		},
	})
	if len(meta.AllowedUsers) != 2 {
		t.Fatalf("expected only alice and bob, got %v", meta.AllowedUsers)
	}
}

func TestParse_AllowedUsersAsList(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{
			"level":         "only_allowed_users",
			"allowed_users": []any{"alice", " bob ", "  "},
		},
	})
	if len(meta.AllowedUsers) != 2 {
		t.Fatalf("expected 2 users, got %v", meta.AllowedUsers)
	}
	if meta.AllowedUsers[1] != "bob" {
		t.Fatalf("expected trimmed bob, got %q", meta.AllowedUsers[1])
	}
}

func TestParse_AllowedOrganizations(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{
			"level":                 "same_organization",
			"allowed_organizations": "org-a,org-b",
		},
	})
	if len(meta.AllowedOrganizations) != 2 {
		t.Fatalf("expected 2 orgs, got %v", meta.AllowedOrganizations)
	}
}

func TestParse_LegacyOrganisationsAlias(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{
			"level":                 "same_organization",
			"allowed_organisations": "org-a",
		},
	})
	if len(meta.AllowedOrganizations) != 1 || meta.AllowedOrganizations[0] != "org-a" {
		t.Fatalf("expected legacy alias accepted, got %v", meta.AllowedOrganizations)
	}
}

func TestParse_OrganizationsAbsentIsEmptyNotError(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{"level": "any_organization"},
	})
	if meta.AllowedOrganizations == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(meta.AllowedOrganizations) != 0 {
		t.Fatalf("expected no orgs, got %v", meta.AllowedOrganizations)
	}
}

func TestParse_NonStringLevelDefaultsToPublic(t *testing.T) {
	meta := Parse(map[string]any{
		"restricted": map[string]any{"level": 42},
	})
	if meta.Level != LevelPublic {
		t.Fatalf("expected public for non-string level, got %s", meta.Level)
	}
}

func TestParseValue_NonStringNonObject(t *testing.T) {
	meta := ParseValue(12345)
	if meta.Level != LevelPublic {
		t.Fatalf("expected public, got %s", meta.Level)
	}
}
