package restriction

import (
	"encoding/json"
	"log"
	"strings"
)

// Level is the named tier of the access policy attached to a resource.
type Level string

const (
	LevelPublic           Level = "public"
	LevelRegistered       Level = "registered"
	LevelOnlyAllowedUsers Level = "only_allowed_users"
	LevelAnyOrganization  Level = "any_organization"
	LevelSameOrganization Level = "same_organization"
)

// Metadata is the canonical parsed form of a resource's access policy.
// It is always fully populated after Parse: a missing or unparseable
// restriction yields the public default, never a partial struct.
type Metadata struct {
	Level                Level    `json:"level"`
	AllowedUsers         []string `json:"allowed_users"`
	AllowedOrganizations []string `json:"allowed_organizations"`
}

// Default returns the public, empty-allowlist metadata.
func Default() Metadata {
	return Metadata{
		Level:                LevelPublic,
		AllowedUsers:         []string{},
		AllowedOrganizations: []string{},
	}
}

// UserAllowed reports whether the identity appears in the allowed-user list.
func (m Metadata) UserAllowed(identity string) bool {
	for _, u := range m.AllowedUsers {
		if u == identity {
			return true
		}
	}
	return false
}

// OrganizationAllowed reports whether the organization name appears in the
// allowed-organization list.
func (m Metadata) OrganizationAllowed(orgName string) bool {
	for _, o := range m.AllowedOrganizations {
		if o == orgName {
			return true
		}
	}
	return false
}

// Parse extracts and canonicalizes the restriction metadata from a raw
// resource record. The raw value may sit directly on the record, inside the
// "extras" container, and in either place may be a structured object or a
// JSON-encoded string (schema plugins rewrap the field both ways). Parse
// never fails: anything unusable falls back to the public default.
func Parse(resource map[string]any) Metadata {
	raw := RawValue(resource)
	if raw == nil {
		return Default()
	}
	return ParseValue(raw)
}

// RawValue returns the raw restriction value from whichever location the
// record carries it: the direct field first, then the extras container.
// Returns nil when neither location holds a value.
func RawValue(resource map[string]any) any {
	if resource == nil {
		return nil
	}
	if v, ok := resource["restricted"]; ok && v != nil {
		return v
	}
	if extras, ok := resource["extras"].(map[string]any); ok {
		if v, ok := extras["restricted"]; ok && v != nil {
			return v
		}
	}
	return nil
}

// ParseValue canonicalizes a single raw restriction value. Accepts a
// structured object or a JSON-encoded string of one.
func ParseValue(raw any) Metadata {
	obj, ok := raw.(map[string]any)
	if !ok {
		s, ok := raw.(string)
		if !ok {
			return Default()
		}
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			log.Printf("restriction: unparseable restriction value, using public default: %v", err)
			return Default()
		}
	}

	meta := Default()
	if lvl, ok := obj["level"].(string); ok && lvl != "" {
		meta.Level = Level(lvl)
	}
	meta.AllowedUsers = splitList(obj["allowed_users"])
	meta.AllowedOrganizations = splitList(orgsValue(obj))
	return meta
}

// orgsValue reads the allowed-organization list, accepting the legacy
// misspelling found in older snapshots. Absence is an empty list, not an
// error: the field only exists in newer schema versions.
func orgsValue(obj map[string]any) any {
	if v, ok := obj["allowed_organizations"]; ok {
		return v
	}
	return obj["allowed_organisations"]
}

// splitList normalizes an allowlist value: either an already-split
// collection or a single comma-joined string. Entries are trimmed and
// whitespace-only entries dropped.
func splitList(v any) []string {
	var parts []string
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	case string:
		parts = strings.Split(val, ",")
	default:
		return []string{}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
