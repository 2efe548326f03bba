package recognition

import (
	"context"
	"errors"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrRecognitionFailed wraps any failure talking to the recognition
	// service. It is distinct from a successful call that found nothing.
	ErrRecognitionFailed = errors.New("recognition: request failed")

	// ErrInvalidImage is returned for payloads that are not a supported image.
	ErrInvalidImage = errors.New("recognition: invalid image")
)

// ScannableCode is one decoded barcode or QR code.
type ScannableCode struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Tag is a label the vision model assigned to an image.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Recognizer extracts identifying information from an image.
//
// Both methods return an empty slice and nil error when the image contains
// nothing recognisable.
type Recognizer interface {
	DecodeScannableCodes(ctx context.Context, image []byte) ([]ScannableCode, error)

	// ExtractTags returns tags ordered by descending confidence.
	ExtractTags(ctx context.Context, image []byte) ([]Tag, error)
}

// itemReference matches the item path printed into item QR codes, for
// example https://inventory.example/items/3f2a...; the id may be a
// hyphenated UUID or 32 bare hex digits.
var itemReference = regexp.MustCompile(`(?i)/items/([0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12})(?:[/?#]|$)`)

// ParseItemReference extracts the item id from a code payload. The id is
// returned in canonical hyphenated lower-case form.
func ParseItemReference(payload string) (string, bool) {
	m := itemReference.FindStringSubmatch(payload)
	if m == nil {
		return "", false
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// FirstItemReference returns the first item id found among codes.
func FirstItemReference(codes []ScannableCode) (string, bool) {
	for _, c := range codes {
		if id, ok := ParseItemReference(c.Data); ok {
			return id, true
		}
	}
	return "", false
}

// SortTags orders tags by descending confidence, keeping the service's
// order for ties.
func SortTags(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Confidence > tags[j].Confidence
	})
}

// TopTags returns at most n tags with non-empty names from an already
// sorted slice.
func TopTags(tags []Tag, n int) []Tag {
	top := make([]Tag, 0, n)
	for _, t := range tags {
		if len(top) == n {
			break
		}
		if t.Name == "" {
			continue
		}
		top = append(top, t)
	}
	return top
}
