package handler

import (
	"net/mail"
	"strings"

	"github.com/lumenworks/newsletter-api/internal/model"
)

// normalizeEmail trims, lowercases and validates an email address.
// Display-name forms ("Dana <a@b.com>") are rejected; the flows only
// ever deal in bare addresses.
func normalizeEmail(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 255 {
		return "", false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", false
	}
	return s, true
}

// normalizeInterests cleans the requested interest tags and reports the
// first value outside the fixed set, if any. Duplicates collapse.
func normalizeInterests(in []string) (out []string, invalid string) {
	seen := map[string]bool{}
	for _, t := range in {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		if !model.ValidInterest(key) {
			return nil, key
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, ""
}
