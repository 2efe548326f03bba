package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
)

// ItemRepository defines item persistence.
type ItemRepository interface {
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*Item, error)

	// GetByIDInGroup returns ErrItemNotFound when the item exists but
	// belongs to another group.
	GetByIDInGroup(ctx context.Context, id, groupID string) (*Item, error)

	// FindFirstInGroupByText returns the oldest live item in the group whose
	// name or description contains text, case-insensitively. Returns
	// (nil, nil) when nothing matches.
	FindFirstInGroupByText(ctx context.Context, groupID, text string) (*Item, error)

	// UpdateStatus sets is_taken with audit stamps.
	UpdateStatus(ctx context.Context, id string, isTaken bool) error

	Create(ctx context.Context, item *Item) error
	SoftDelete(ctx context.Context, id string) error
}

// SQLiteItemRepository implements ItemRepository using SQLite.
type SQLiteItemRepository struct {
	db *sql.DB
}

// NewSQLiteItemRepository creates a new SQLite-backed item repository.
func NewSQLiteItemRepository(db *sql.DB) *SQLiteItemRepository {
	return &SQLiteItemRepository{db: db}
}

const itemColumns = "id, name, description, is_taken, shelf_id, group_id, " + auditColumns

func (r *SQLiteItemRepository) GetByID(ctx context.Context, id string, opts ...ReadOption) (*Item, error) {
	query := "SELECT " + itemColumns + " FROM items" + newScope(opts).where([]string{""}, "id = ?")
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return item, nil
}

func (r *SQLiteItemRepository) GetByIDInGroup(ctx context.Context, id, groupID string) (*Item, error) {
	query := "SELECT " + itemColumns + " FROM items" + newScope(nil).where([]string{""}, "id = ?", "group_id = ?")
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id, groupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("querying item in group: %w", err)
	}
	return item, nil
}

func (r *SQLiteItemRepository) FindFirstInGroupByText(ctx context.Context, groupID, text string) (*Item, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	pattern := containsPattern(text)
	query := "SELECT " + itemColumns + " FROM items" +
		newScope(nil).where([]string{""},
			"group_id = ?",
			`(casefold(name) LIKE ? ESCAPE '\' OR casefold(COALESCE(description, '')) LIKE ? ESCAPE '\')`,
		) + " ORDER BY created_at, id LIMIT 1"

	item, err := scanItem(r.db.QueryRowContext(ctx, query, groupID, pattern, pattern))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return item, nil
}

func (r *SQLiteItemRepository) UpdateStatus(ctx context.Context, id string, isTaken bool) error {
	return updateItemStatus(ctx, r.db, id, isTaken)
}

// Create inserts an item, generating its id when empty.
func (r *SQLiteItemRepository) Create(ctx context.Context, item *Item) error {
	if item.Name == "" || item.ShelfID == "" || item.GroupID == "" {
		return fmt.Errorf("%w: item name, shelf and group are required", ErrInvalidEntity)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedBy = auth.ActorID(ctx)
	item.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, name, description, is_taken, shelf_id, group_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, nullableString(item.Description), item.IsTaken, item.ShelfID, item.GroupID,
		item.CreatedBy, formatTime(item.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// SoftDelete marks an item deleted. Its history stays readable.
func (r *SQLiteItemRepository) SoftDelete(ctx context.Context, id string) error {
	return softDelete(ctx, r.db, "items", id, ErrItemNotFound)
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var description sql.NullString
	var a auditScan
	err := row.Scan(append([]any{&item.ID, &item.Name, &description, &item.IsTaken, &item.ShelfID, &item.GroupID},
		a.targets(&item.Audit)...)...)
	if err != nil {
		return nil, err
	}
	item.Description = stringPtr(description)
	if err := a.apply(&item.Audit); err != nil {
		return nil, err
	}
	return &item, nil
}

func updateItemStatus(ctx context.Context, db execer, id string, isTaken bool) error {
	result, err := db.ExecContext(ctx,
		"UPDATE items SET is_taken = ?, last_modified_by = ?, last_modified_at = ? WHERE id = ? AND is_deleted = 0",
		isTaken, auth.ActorID(ctx), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}
