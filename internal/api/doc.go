// Package api implements the HTTP REST API and WebSocket server for the
// inventory core.
//
// This package provides:
//   - Device endpoints for access points (identify-by-image) and shelf
//     controllers (light status reports, motion)
//   - User endpoints for scan history, item status, item history and manual
//     shelf light control
//   - WebSocket hub broadcasting scan and shelf light events per group
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     request metrics, bearer-token actor)
//
// # Security
//
// Devices do not authenticate; their calls run as the anonymous actor. User
// routes require an HS256 bearer token issued by the account service. The
// token's groups scope every read. WebSocket connections use single-use
// tickets so the token never appears in a URL.
//
// # Errors
//
// Responses use {"status","code","message"}. Missing devices, shelves and
// items are 404, bad input 400, group violations 403, and a shelf device
// that does not acknowledge a light command 502.
package api
