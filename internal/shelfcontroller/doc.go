// Package shelfcontroller handles rack shelf controllers: light state
// reports, motion events and the item status changes that decide whether
// motion should switch a lit shelf off.
//
// A shelf lit for a scan stays lit until someone arrives. Motion at a lit
// shelf turns it off only if one of its items saw activity within the
// recency window; older light states are left alone so that stray motion
// does not flicker unrelated shelves.
//
// Reports arrive over HTTP (see package api) or MQTT through Listener.
package shelfcontroller
