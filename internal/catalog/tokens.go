package catalog

import (
	"strings"
	"unicode"
)

func normalize(s string) string {
	return strings.Join(splitAlphaNumLower(s), " ")
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func pad(text string) string {
	return " " + normalize(text) + " "
}

// containsPhrase matches whole tokens only; padded must come from pad.
func containsPhrase(padded, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(padded, " "+phrase+" ")
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
