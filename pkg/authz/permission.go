package authz

import (
	"errors"
	"strings"
)

const (
	wildcardToken     = "*"
	partDividerToken  = ":"
	subpartDivider    = ","
	permissionPartMax = 3
)

var ErrInvalidPermission = errors.New("authz: invalid permission")

// WildcardPermission is a `domain:action:instance` permission where each part
// may be `*` or a comma separated list. Missing trailing parts are implied
// wildcards, so `document` implies `document:read:42`.
type WildcardPermission struct {
	raw   string
	parts [][]string
}

// ParsePermission parses s. Parts are case-insensitive.
func ParsePermission(s string) (WildcardPermission, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return WildcardPermission{}, ErrInvalidPermission
	}

	raw := strings.Split(strings.ToLower(s), partDividerToken)
	if len(raw) > permissionPartMax {
		return WildcardPermission{}, ErrInvalidPermission
	}

	parts := make([][]string, 0, len(raw))
	for _, part := range raw {
		var subparts []string
		for sub := range strings.SplitSeq(part, subpartDivider) {
			sub = strings.TrimSpace(sub)
			if sub == "" {
				return WildcardPermission{}, ErrInvalidPermission
			}
			subparts = append(subparts, sub)
		}
		parts = append(parts, subparts)
	}

	return WildcardPermission{raw: s, parts: parts}, nil
}

func (p WildcardPermission) String() string { return p.raw }

// Domain is the first part of the permission, or `*`.
func (p WildcardPermission) Domain() string {
	if len(p.parts) == 0 || len(p.parts[0]) != 1 {
		return wildcardToken
	}
	return p.parts[0][0]
}

// Implies reports whether holding p grants other.
func (p WildcardPermission) Implies(other WildcardPermission) bool {
	for i, otherPart := range other.parts {
		// p is shorter than other, so its remaining parts are implied wildcards.
		if i >= len(p.parts) {
			return true
		}
		part := p.parts[i]
		if containsWildcard(part) {
			continue
		}
		for _, sub := range otherPart {
			if !contains(part, sub) {
				return false
			}
		}
	}

	// p is longer than other: p's trailing parts must all be wildcards.
	for i := len(other.parts); i < len(p.parts); i++ {
		if !containsWildcard(p.parts[i]) {
			return false
		}
	}
	return true
}

func containsWildcard(part []string) bool { return contains(part, wildcardToken) }

func contains(part []string, v string) bool {
	for _, s := range part {
		if s == v {
			return true
		}
	}
	return false
}
