package inventory

import "time"

// Audit holds the bookkeeping fields every stored entity carries.
type Audit struct {
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	LastModifiedBy *string    `json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time `json:"last_modified_at,omitempty"`
	IsDeleted      bool       `json:"-"`
}

// Group is the tenancy boundary. Devices, shelves and items belong to
// exactly one group and are only visible within it.
type Group struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Audit
}

// DeviceKind classifies physical devices.
type DeviceKind string

const (
	DeviceKindAccessPoint         DeviceKind = "AccessPoint"
	DeviceKindRackShelfController DeviceKind = "RackShelfController"
	DeviceKindUnknown             DeviceKind = "Unknown"
)

// Device is a physical access point or shelf controller. ExternalID is the
// opaque GUID the hardware identifies itself with.
type Device struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	Name       string     `json:"name"`
	Kind       DeviceKind `json:"kind"`
	GroupID    string     `json:"group_id"`
	IsActive   bool       `json:"is_active"`
	Audit
}

// Clone returns an independent copy of d.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.LastModifiedBy != nil {
		by := *d.LastModifiedBy
		cpy.LastModifiedBy = &by
	}
	if d.LastModifiedAt != nil {
		at := *d.LastModifiedAt
		cpy.LastModifiedAt = &at
	}
	return &cpy
}

// Shelf is one level of a rack, driven by a shelf controller device.
// PositionInRack is 1-based, counted from the bottom.
type Shelf struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PositionInRack int    `json:"position_in_rack"`
	IsLitUp        bool   `json:"is_lit_up"`
	GroupID        string `json:"group_id"`
	DeviceID       string `json:"device_id"`
	Audit
}

// Item is a tracked object stored on a shelf.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsTaken     bool    `json:"is_taken"`
	ShelfID     string  `json:"shelf_id"`
	GroupID     string  `json:"group_id"`
	Audit
}

// ScanType records which recognition strategy produced a scan result.
type ScanType string

const (
	ScanTypeCode   ScanType = "code"
	ScanTypeObject ScanType = "object"
)

// Scan results stored in scan history.
const (
	ScanResultFound    = "Found Item"
	ScanResultNotFound = "Not Found Item"
)

// ScanHistory is an immutable record of one identification attempt.
type ScanHistory struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	ScanType  ScanType  `json:"scan_type"`
	Result    string    `json:"result"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemHistoryType tags what caused an item history entry.
type ItemHistoryType string

const (
	ItemHistoryScan   ItemHistoryType = "scan"
	ItemHistoryManual ItemHistoryType = "manual"
	ItemHistoryMotion ItemHistoryType = "motion"
)

// ItemHistory is an immutable record of a change to, or light action on
// behalf of, an item. The newest entry for a shelf's items is the
// "recently in use" signal for motion handling.
type ItemHistory struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	Type      ItemHistoryType `json:"type"`
	IsTaken   bool            `json:"is_taken"`
	Comment   string          `json:"comment"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Page is one page of a newest-first listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// normalisePage clamps page number and size and returns the row offset.
func normalisePage(number, size int) (int, int, int) {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return number, size, (number - 1) * size
}

func newPage[T any](items []T, number, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		PageNumber: number,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}
}
