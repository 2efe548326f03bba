package auth

import (
	"errors"
	"slices"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleDevice is an access point or shelf controller calling on its own behalf.
	RoleDevice Role = "device"

	// RoleUser is a group member. Access is limited to the groups in the token.
	RoleUser Role = "user"

	// RoleAdmin manages groups and devices and sees every group.
	RoleAdmin Role = "admin"

	// RoleOwner has everything admin can do.
	RoleOwner Role = "owner"
)

// Actor is the identity a request runs as. It is carried in the request
// context and stamped into audit fields.
//
// The zero Actor is an anonymous device caller; its ID is empty.
type Actor struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// IsAnonymous reports whether no identity was established.
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}

// CanAccessGroup reports whether the actor may read data of groupID.
// Admins and owners bypass group scoping.
func (a Actor) CanAccessGroup(groupID string) bool {
	if a.Role == RoleAdmin || a.Role == RoleOwner {
		return true
	}
	return slices.Contains(a.GroupIDs, groupID)
}

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("forbidden")
)
