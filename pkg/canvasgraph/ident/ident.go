// Package ident generates node and edge identifiers and normalizes
// user-facing titles into identifier-safe, collision-free strings.
package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultName is the fallback used when sanitizing leaves nothing usable.
const DefaultName = "node"

// NewID returns a fresh unique identifier with the given prefix,
// e.g. NewID("node") -> "node-1b9d6bcd".
//
// IDs are backed by a v4 UUID so collisions are negligible for the
// lifetime of an editing session.
func NewID(prefix string) string {
	if prefix == "" {
		return uuid.New().String()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// Sanitize converts name into a valid identifier-like string.
//
// Rules:
//   - every character outside [A-Za-z0-9_] becomes '_'
//   - a leading digit gets a '_' prefix
//   - an empty or all-underscore result falls back to DefaultName
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if strings.Trim(s, "_") == "" {
		return DefaultName
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// UniqueTitle sanitizes desired and disambiguates it against existing titles
// by appending _1, _2, ... until no collision remains.
//
// Deterministic: the same desired name and existing set always yield the
// same result.
func UniqueTitle(desired string, existing map[string]struct{}) string {
	title := Sanitize(desired)
	if _, taken := existing[title]; !taken {
		return title
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", title, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}
