// Package inventory is the persistence layer of the inventory core:
// groups, devices, shelves, items and their append-only histories, stored
// in SQLite.
//
// Every repository read hides soft-deleted rows through a shared query
// scope; pass IncludeDeleted to see them. Nothing is ever hard-deleted.
//
// Audit fields are stamped from the actor carried in the context (see
// package auth). A context without an actor records an empty creator, which
// is how anonymous device calls are stored.
//
// Timestamps are stored as fixed-width UTC text so that ordering by the
// column orders by time.
package inventory
