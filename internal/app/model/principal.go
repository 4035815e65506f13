package model

import "slices"

const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
)

// Principal identifies the caller of an operation.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// CanRead reports whether p may read resources owned by owner.
func (p Principal) CanRead(owner string) bool {
	return p.ID == owner || p.HasRole(RoleAdmin) || p.HasRole(RoleAnalyst)
}

// CanWrite reports whether p may modify resources owned by owner.
func (p Principal) CanWrite(owner string) bool {
	return p.ID == owner || p.HasRole(RoleAdmin)
}
