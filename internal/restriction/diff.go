package restriction

// DiffGrantedUsers returns the identities present in the updated snapshot's
// allowed_users but not the previous one. Both snapshots go through the
// tolerant parser, so a missing or garbled snapshot contributes an empty
// grant set rather than an error. Result order is unspecified.
func DiffGrantedUsers(previousRaw, updatedRaw any) []string {
	previous := ParseValue(previousRaw)
	updated := ParseValue(updatedRaw)

	seen := make(map[string]bool, len(previous.AllowedUsers))
	for _, u := range previous.AllowedUsers {
		seen[u] = true
	}

	var granted []string
	for _, u := range updated.AllowedUsers {
		if !seen[u] {
			granted = append(granted, u)
			seen[u] = true // a duplicate entry still notifies once
		}
	}
	return granted
}
