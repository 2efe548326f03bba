package inventory

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width so that lexical order of stored timestamps is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// likeEscaper escapes LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
}

// auditColumns is the column list shared by every mutable table.
const auditColumns = "created_by, created_at, last_modified_by, last_modified_at, is_deleted"

// auditScan holds raw audit columns until they are converted.
type auditScan struct {
	createdAt      string
	lastModifiedBy sql.NullString
	lastModifiedAt sql.NullString
}

func (a *auditScan) targets(audit *Audit) []any {
	return []any{&audit.CreatedBy, &a.createdAt, &a.lastModifiedBy, &a.lastModifiedAt, &audit.IsDeleted}
}

func (a *auditScan) apply(audit *Audit) error {
	createdAt, err := parseTime(a.createdAt)
	if err != nil {
		return err
	}
	audit.CreatedAt = createdAt
	audit.LastModifiedBy = stringPtr(a.lastModifiedBy)
	audit.LastModifiedAt, err = parseNullTime(a.lastModifiedAt)
	return err
}
