package auth

import "slices"

// Permission represents a named capability.
type Permission string

const (
	PermScanHistoryRead Permission = "scan_history:read"
	PermItemHistoryRead Permission = "item_history:read"
	PermItemStatusWrite Permission = "item_status:write"
	PermShelfLightWrite Permission = "shelf_light:write"
	PermEventsSubscribe Permission = "events:subscribe"
)

// rolePermissions is the single source of truth for what each role may do.
// Group scoping is applied separately through Actor.CanAccessGroup.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermScanHistoryRead,
		PermItemHistoryRead,
		PermItemStatusWrite,
		PermShelfLightWrite,
		PermEventsSubscribe,
	},
	RoleAdmin: {
		PermScanHistoryRead,
		PermItemHistoryRead,
		PermItemStatusWrite,
		PermShelfLightWrite,
		PermEventsSubscribe,
	},
	RoleOwner: {
		PermScanHistoryRead,
		PermItemHistoryRead,
		PermItemStatusWrite,
		PermShelfLightWrite,
		PermEventsSubscribe,
	},
}

// HasPermission returns true if role grants perm. Device identities hold
// no permissions; the hardware does not authenticate.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}
