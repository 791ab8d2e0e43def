package planner

// NextLetter returns the first letter A..Z not in existing.
// Freed letters are reused: {A, C} yields B.
func NextLetter(existing []string) (string, error) {
	used := make(map[string]bool, len(existing))
	for _, l := range existing {
		used[l] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		if l := string(c); !used[l] {
			return l, nil
		}
	}
	return "", ErrNoIdentifierAvailable
}
