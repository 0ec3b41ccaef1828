package vault

type (
	// Sessions is the ordered allow-list of tokens issued to a user.
	// Order is issuance order, oldest first.
	Sessions []string
)

// Add appends token to the end of the list.
func (s *Sessions) Add(token string) {
	*s = append(*s, token)
}

// Remove drops every entry that matches token exactly and reports whether
// anything was removed. The relative order of the remaining tokens is kept.
func (s *Sessions) Remove(token string) bool {
	out := (*s)[:0]
	removed := false
	for _, t := range *s {
		if t == token {
			removed = true
			continue
		}
		out = append(out, t)
	}
	*s = out
	return removed
}

// Clear empties the list.
func (s *Sessions) Clear() {
	*s = Sessions{}
}

func (s Sessions) Contains(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}
