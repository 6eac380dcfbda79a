package schema

import "strings"

// FindPropertyKey returns the bag key that matches one of candidates.
// Exact matches win in candidate order, then case-insensitive matches, then
// matches that also ignore spaces, underscores and hyphens.
func FindPropertyKey(bag *Bag, candidates []string) (string, bool) {
	if bag.Len() == 0 {
		return "", false
	}
	for _, c := range candidates {
		if _, ok := bag.Get(c); ok {
			return c, true
		}
	}
	keys := bag.Keys()
	for _, c := range candidates {
		for _, k := range keys {
			if strings.EqualFold(k, c) {
				return k, true
			}
		}
	}
	for _, c := range candidates {
		nc := squash(c)
		for _, k := range keys {
			if squash(k) == nc {
				return k, true
			}
		}
	}
	return "", false
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(s))
}
