package inventory

import "errors"

// Check with errors.Is. The API maps the NotFound family to 404.
var (
	ErrGroupNotFound  = errors.New("inventory: group not found")
	ErrDeviceNotFound = errors.New("inventory: device not found")
	ErrShelfNotFound  = errors.New("inventory: shelf not found")
	ErrItemNotFound   = errors.New("inventory: item not found")

	// ErrDuplicate is returned when a unique key such as a device external id is reused.
	ErrDuplicate = errors.New("inventory: already exists")

	ErrInvalidEntity = errors.New("inventory: invalid")
)

// IsNotFound reports whether err means a referenced record does not exist
// or is soft-deleted.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrShelfNotFound) ||
		errors.Is(err, ErrItemNotFound)
}
