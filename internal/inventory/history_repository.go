package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
)

// ScanHistoryRepository stores identification attempts. Entries are never
// updated.
type ScanHistoryRepository interface {
	Append(ctx context.Context, entry *ScanHistory) error

	// ListByDevice returns a device's scans newest first.
	ListByDevice(ctx context.Context, deviceID string, page, size int) (Page[ScanHistory], error)
}

// ItemHistoryRepository stores item status and light changes. Entries are
// never updated.
type ItemHistoryRepository interface {
	Append(ctx context.Context, entry *ItemHistory) error

	// LatestInShelfSince returns the newest entry created after since for any
	// live item on the shelf, or (nil, nil) when there is none.
	LatestInShelfSince(ctx context.Context, shelfID string, since time.Time) (*ItemHistory, error)

	// ListByItem returns an item's history newest first.
	ListByItem(ctx context.Context, itemID string, page, size int) (Page[ItemHistory], error)
}

// SQLiteScanHistoryRepository implements ScanHistoryRepository using SQLite.
type SQLiteScanHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteScanHistoryRepository creates a new SQLite-backed scan history repository.
func NewSQLiteScanHistoryRepository(db *sql.DB) *SQLiteScanHistoryRepository {
	return &SQLiteScanHistoryRepository{db: db}
}

// Append stamps id, creator and time, then inserts the entry.
func (r *SQLiteScanHistoryRepository) Append(ctx context.Context, entry *ScanHistory) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("%w: scan history requires a device", ErrInvalidEntity)
	}
	entry.ID = uuid.NewString()
	entry.CreatedBy = auth.ActorID(ctx)
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO scan_history (id, device_id, scan_type, result, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.DeviceID, string(entry.ScanType), entry.Result, entry.CreatedBy, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting scan history: %w", err)
	}
	return nil
}

func (r *SQLiteScanHistoryRepository) ListByDevice(ctx context.Context, deviceID string, page, size int) (Page[ScanHistory], error) {
	page, size, offset := normalisePage(page, size)
	where := newScope(nil).where([]string{""}, "device_id = ?")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scan_history"+where, deviceID).Scan(&total); err != nil {
		return Page[ScanHistory]{}, fmt.Errorf("counting scan history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, device_id, scan_type, result, created_by, created_at FROM scan_history"+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		deviceID, size, offset,
	)
	if err != nil {
		return Page[ScanHistory]{}, fmt.Errorf("querying scan history: %w", err)
	}
	defer rows.Close()

	var entries []ScanHistory
	for rows.Next() {
		var e ScanHistory
		var scanType, createdAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &scanType, &e.Result, &e.CreatedBy, &createdAt); err != nil {
			return Page[ScanHistory]{}, fmt.Errorf("scanning scan history: %w", err)
		}
		e.ScanType = ScanType(scanType)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return Page[ScanHistory]{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page[ScanHistory]{}, fmt.Errorf("iterating scan history: %w", err)
	}
	return newPage(entries, page, size, total), nil
}

// SQLiteItemHistoryRepository implements ItemHistoryRepository using SQLite.
type SQLiteItemHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteItemHistoryRepository creates a new SQLite-backed item history repository.
func NewSQLiteItemHistoryRepository(db *sql.DB) *SQLiteItemHistoryRepository {
	return &SQLiteItemHistoryRepository{db: db}
}

func (r *SQLiteItemHistoryRepository) Append(ctx context.Context, entry *ItemHistory) error {
	return appendItemHistory(ctx, r.db, entry)
}

func (r *SQLiteItemHistoryRepository) LatestInShelfSince(ctx context.Context, shelfID string, since time.Time) (*ItemHistory, error) {
	query := "SELECT h.id, h.item_id, h.type, h.is_taken, h.comment, h.created_by, h.created_at" +
		" FROM item_history h JOIN items i ON i.id = h.item_id" +
		newScope(nil).where([]string{"h", "i"}, "i.shelf_id = ?", "h.created_at > ?") +
		" ORDER BY h.created_at DESC, h.id DESC LIMIT 1"

	entry, err := scanItemHistory(r.db.QueryRowContext(ctx, query, shelfID, formatTime(since)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest shelf history: %w", err)
	}
	return entry, nil
}

func (r *SQLiteItemHistoryRepository) ListByItem(ctx context.Context, itemID string, page, size int) (Page[ItemHistory], error) {
	page, size, offset := normalisePage(page, size)
	where := newScope(nil).where([]string{""}, "item_id = ?")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM item_history"+where, itemID).Scan(&total); err != nil {
		return Page[ItemHistory]{}, fmt.Errorf("counting item history: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, item_id, type, is_taken, comment, created_by, created_at FROM item_history"+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		itemID, size, offset,
	)
	if err != nil {
		return Page[ItemHistory]{}, fmt.Errorf("querying item history: %w", err)
	}
	defer rows.Close()

	var entries []ItemHistory
	for rows.Next() {
		entry, err := scanItemHistory(rows)
		if err != nil {
			return Page[ItemHistory]{}, fmt.Errorf("scanning item history: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return Page[ItemHistory]{}, fmt.Errorf("iterating item history: %w", err)
	}
	return newPage(entries, page, size, total), nil
}

func scanItemHistory(row rowScanner) (*ItemHistory, error) {
	var e ItemHistory
	var typ, createdAt string
	if err := row.Scan(&e.ID, &e.ItemID, &typ, &e.IsTaken, &e.Comment, &e.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	e.Type = ItemHistoryType(typ)
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func appendItemHistory(ctx context.Context, db execer, entry *ItemHistory) error {
	if entry.ItemID == "" {
		return fmt.Errorf("%w: item history requires an item", ErrInvalidEntity)
	}
	entry.ID = uuid.NewString()
	entry.CreatedBy = auth.ActorID(ctx)
	entry.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx,
		"INSERT INTO item_history (id, item_id, type, is_taken, comment, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.ID, entry.ItemID, string(entry.Type), entry.IsTaken, entry.Comment, entry.CreatedBy, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting item history: %w", err)
	}
	return nil
}
