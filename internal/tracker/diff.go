package tracker

import "strings"

// Handles extracts the handles of a following list, dropping blanks and duplicates.
// Case is preserved as provided by upstream; order follows first appearance.
func Handles(accounts []Account) []string {
	out := make([]string, 0, len(accounts))
	seen := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		h := strings.TrimSpace(a.Handle)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Newcomers returns the elements of current absent from baseline, deduplicated,
// in the order they appear in current.
func Newcomers(baseline, current []string) []string {
	known := make(map[string]struct{}, len(baseline))
	for _, h := range baseline {
		known[h] = struct{}{}
	}
	var out []string
	for _, h := range current {
		if _, ok := known[h]; ok {
			continue
		}
		known[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
