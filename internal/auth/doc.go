// Package auth establishes who a request runs as.
//
// Tokens are HS256 JWTs issued by the account service and carry the
// subject, a role and the caller's group memberships. The API layer
// validates them and stores the resulting Actor in the request context;
// repositories read it back for audit stamps. There is no process-wide
// "current user".
//
// Device endpoints (identify-by-image, shelf status, motion) run as the
// anonymous actor.
package auth
