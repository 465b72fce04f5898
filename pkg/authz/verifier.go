package authz

import "iter"

// PermissionVerifier answers permission queries against a snapshot. The
// returned sequence is finite and may be iterated more than once.
type PermissionVerifier interface {
	IsPermitted(info *Info, permissions []string) iter.Seq2[string, bool]
}

// RoleVerifier answers role membership queries against a snapshot.
type RoleVerifier interface {
	HasRole(info *Info, roles []string) iter.Seq2[string, bool]
}

// WildcardPermissionVerifier evaluates WildcardPermission implication. Held
// permissions are indexed by domain so a query only scans the candidates for
// its own domain and the wildcard domain.
type WildcardPermissionVerifier struct{}

func (WildcardPermissionVerifier) IsPermitted(info *Info, permissions []string) iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		var index map[string][]WildcardPermission
		for _, requested := range permissions {
			if index == nil {
				index = indexByDomain(info)
			}
			if !yield(requested, permitted(index, requested)) {
				return
			}
		}
	}
}

func indexByDomain(info *Info) map[string][]WildcardPermission {
	index := make(map[string][]WildcardPermission)
	if info == nil {
		return index
	}
	for _, raw := range info.Permissions {
		p, err := ParsePermission(raw)
		if err != nil {
			// a malformed stored permission grants nothing
			continue
		}
		index[p.Domain()] = append(index[p.Domain()], p)
	}
	return index
}

func permitted(index map[string][]WildcardPermission, requested string) bool {
	want, err := ParsePermission(requested)
	if err != nil {
		return false
	}
	candidates := index[wildcardToken]
	if d := want.Domain(); d != wildcardToken {
		candidates = append(candidates[:len(candidates):len(candidates)], index[d]...)
	}
	for _, held := range candidates {
		if held.Implies(want) {
			return true
		}
	}
	return false
}

// SimpleRoleVerifier checks plain role id membership.
type SimpleRoleVerifier struct{}

func (SimpleRoleVerifier) HasRole(info *Info, roles []string) iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		for _, role := range roles {
			if !yield(role, info.HasRole(role)) {
				return
			}
		}
	}
}
