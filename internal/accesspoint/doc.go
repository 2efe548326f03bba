// Package accesspoint implements item identification for access point
// cameras.
//
// IdentifyItem runs two recognition strategies side by side: decoding
// scannable codes that carry an item reference, and matching the image's
// top tags against item names and descriptions in the device's group. A
// code match wins outright. Every attempt is written to the device's scan
// history; a successful one also lights the item's shelf through its shelf
// controller.
package accesspoint
