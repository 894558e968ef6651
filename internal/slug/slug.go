// Package slug derives URL-safe identifiers from product titles.
package slug

import (
	"context"
	"fmt"
	"strings"
)

// Fallback is used when a title has no characters that survive slugification.
const Fallback = "product"

// Slugify lower-cases and trims s, collapses every run of characters outside
// [a-z0-9] into a single '-', and strips leading and trailing '-'.
func Slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteByte(c)
			continue
		}
		pendingDash = true
	}

	return b.String()
}

// IsCanonical reports whether s is a non-empty slug that Slugify leaves unchanged
func IsCanonical(s string) bool {
	return s != "" && Slugify(s) == s
}

// ExistsFunc reports whether a slug is already taken
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// ResolveUnique returns base if it is free, otherwise the first of base-2, base-3, ...
// that exists reports as unused.
func ResolveUnique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}

		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
