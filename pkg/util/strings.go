package util

// HasPrefix reports whether s begins with prefix.
//
// This helper avoids importing "strings" in hot paths and performs the
// comparison without allocations. An empty prefix always matches.
func HasPrefix(s, prefix string) bool {
	lp := len(prefix)
	if lp == 0 {
		return true
	}
	if len(s) < lp {
		return false
	}
	return s[:lp] == prefix
}

// TrimPrefixIf returns s with the provided prefix removed when present, and
// a boolean indicating whether the prefix was removed.
//
// When prefix is empty, it returns s unchanged and true.
func TrimPrefixIf(s, prefix string) (string, bool) {
	lp := len(prefix)
	if lp == 0 {
		return s, true
	}
	if len(s) < lp {
		return s, false
	}
	if s[:lp] == prefix {
		return s[lp:], true
	}
	return s, false
}
