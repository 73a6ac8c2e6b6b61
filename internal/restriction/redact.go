package restriction

import (
	"context"
	"encoding/json"
	"strings"

	"restricted-backend/internal/membership"
)

const maskPlaceholder = "*****"

// MaskIdentity partially hides a username for display to non-privileged
// viewers: first 3 characters, a fixed filler, last 2. Identities shorter
// than 6 characters become the bare placeholder so no slice can go out of
// range and nothing of a short name leaks.
func MaskIdentity(identity string) string {
	if len(identity) < 6 {
		return maskPlaceholder
	}
	return identity[:3] + maskPlaceholder + identity[len(identity)-2:]
}

// RedactForListing returns a copy of the resource record with the
// restriction-bearing fields rewritten for a non-privileged viewer: the
// viewer's own entry in allowed_users survives verbatim, every other entry
// is masked, organizations pass through. Privileged viewers and records
// carrying no restriction value get the record back untouched. The caller's
// record is never mutated.
func RedactForListing(resource map[string]any, viewerPrivileged bool, viewer string) map[string]any {
	if viewerPrivileged {
		return resource
	}

	raw := RawValue(resource)
	if raw == nil {
		// Unrestricted records keep their shape; there is nothing to hide
		// and nothing worth rewriting into a populated default.
		return resource
	}
	meta := ParseValue(raw)

	masked := make([]string, 0, len(meta.AllowedUsers))
	for _, user := range meta.AllowedUsers {
		if user == viewer {
			masked = append(masked, user)
		} else {
			masked = append(masked, MaskIdentity(user))
		}
	}

	redacted, err := json.Marshal(map[string]any{
		"level":                 string(meta.Level),
		"allowed_users":         strings.Join(masked, ","),
		"allowed_organizations": strings.Join(meta.AllowedOrganizations, ","),
	})
	if err != nil {
		// Marshal of plain strings cannot fail; fall back to hiding everything.
		redacted = []byte(`{"level":"` + string(meta.Level) + `"}`)
	}

	out := copyRecord(resource)
	if _, ok := out["restricted"]; ok {
		out["restricted"] = string(redacted)
	}
	if extras, ok := out["extras"].(map[string]any); ok {
		if _, ok := extras["restricted"]; ok {
			extras["restricted"] = string(redacted)
		}
	}
	return out
}

// copyRecord makes a shallow copy of the record with the extras container
// copied one level deep, so rewriting restriction fields cannot touch the
// caller's maps.
func copyRecord(resource map[string]any) map[string]any {
	out := make(map[string]any, len(resource))
	for k, v := range resource {
		out[k] = v
	}
	if extras, ok := resource["extras"].(map[string]any); ok {
		extrasCopy := make(map[string]any, len(extras))
		for k, v := range extras {
			extrasCopy[k] = v
		}
		out["extras"] = extrasCopy
	}
	return out
}

// FilterAccessible returns only the resources the identity may view, with
// the corrected count. No redaction happens here; listings that hide
// inaccessible resources use this to fix their totals. pkgByID maps package
// ids to their context; a missing entry evaluates with an empty owner org.
func FilterAccessible(ctx context.Context, resources []map[string]any, identity string, pkgByID map[string]PackageContext, lookup membership.Lookup) ([]map[string]any, int, error) {
	accessible := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		pkgID, _ := res["package_id"].(string)
		decision, err := EvaluateRaw(ctx, identity, res, pkgByID[pkgID], lookup)
		if err != nil {
			return nil, 0, err
		}
		if decision.Allowed {
			accessible = append(accessible, res)
		}
	}
	return accessible, len(accessible), nil
}
