package inventory

import "time"

// Live event channels.
const (
	EventScanRecorded      = "scan.recorded"
	EventShelfLightChanged = "shelf.light_changed"
)

// ScanEvent is published on EventScanRecorded.
type ScanEvent struct {
	DeviceID string    `json:"device_id"`
	GroupID  string    `json:"group_id"`
	ScanType ScanType  `json:"scan_type"`
	Result   string    `json:"result"`
	ItemID   string    `json:"item_id,omitempty"`
	At       time.Time `json:"at"`
}

// LightEvent is published on EventShelfLightChanged. Trigger is "scan",
// "motion" or "report".
type LightEvent struct {
	ShelfID  string `json:"shelf_id"`
	GroupID  string `json:"group_id"`
	DeviceID string `json:"device_id"`
	ItemID   string `json:"item_id,omitempty"`
	IsLitUp  bool   `json:"is_lit_up"`
	Trigger  string `json:"trigger"`
}

// EventGroup scopes live delivery to members of the event's group.
func (e ScanEvent) EventGroup() string { return e.GroupID }

// EventGroup scopes live delivery to members of the event's group.
func (e LightEvent) EventGroup() string { return e.GroupID }
