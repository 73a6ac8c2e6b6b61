package restriction

import (
	"context"
	"encoding/json"
	"log"
	"strings"
)

// NormalizeAllowedUsers rewrites a raw restriction JSON string so that
// allowed_users entries given as email addresses become usernames, resolved
// through the user directory. Unresolvable emails are dropped, duplicates
// collapse, everything else passes through. A value that doesn't parse is
// returned unchanged; the read path's tolerant parser deals with it.
func NormalizeAllowedUsers(ctx context.Context, raw string, resolve func(ctx context.Context, email string) (string, error)) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		log.Printf("restriction: normalize skipped, unparseable value: %v", err)
		return raw, nil
	}

	users := splitList(obj["allowed_users"])
	if len(users) == 0 {
		return raw, nil
	}

	out := make([]string, 0, len(users))
	seen := make(map[string]bool, len(users))
	for _, entry := range users {
		name := entry
		if strings.Contains(entry, "@") {
			resolved, err := resolve(ctx, entry)
			if err != nil {
				return "", err
			}
			name = resolved
		}
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	obj["allowed_users"] = strings.Join(out, ",")
	normalized, err := json.Marshal(obj)
	if err != nil {
		return raw, nil
	}
	return string(normalized), nil
}
