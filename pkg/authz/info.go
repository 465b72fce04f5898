// Package authz holds authorization info and the verifiers that answer
// permission and role queries against it.
package authz

import "slices"

// Info is the authorization snapshot of one account. Permissions are kept in
// their string form so the snapshot can be cached as-is.
type Info struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether role is assigned. A nil Info has no roles.
func (i *Info) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Roles, role)
}

func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	return &Info{
		Roles:       slices.Clone(i.Roles),
		Permissions: slices.Clone(i.Permissions),
	}
}
