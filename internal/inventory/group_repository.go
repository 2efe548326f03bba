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

// GroupRepository persists groups. Group administration lives in the
// admin service; the core needs lookups and fixtures only.
type GroupRepository interface {
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*Group, error)
	Create(ctx context.Context, group *Group) error
}

// SQLiteGroupRepository implements GroupRepository using SQLite.
type SQLiteGroupRepository struct {
	db *sql.DB
}

// NewSQLiteGroupRepository creates a new SQLite-backed group repository.
func NewSQLiteGroupRepository(db *sql.DB) *SQLiteGroupRepository {
	return &SQLiteGroupRepository{db: db}
}

// GetByID returns ErrGroupNotFound for unknown or soft-deleted groups.
func (r *SQLiteGroupRepository) GetByID(ctx context.Context, id string, opts ...ReadOption) (*Group, error) {
	query := "SELECT id, name, description, " + auditColumns + " FROM groups" +
		newScope(opts).where([]string{""}, "id = ?")

	var g Group
	var description sql.NullString
	var a auditScan
	err := r.db.QueryRowContext(ctx, query, id).Scan(append([]any{&g.ID, &g.Name, &description}, a.targets(&g.Audit)...)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group by id: %w", err)
	}
	g.Description = stringPtr(description)
	if err := a.apply(&g.Audit); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a group, generating its id when empty.
func (r *SQLiteGroupRepository) Create(ctx context.Context, g *Group) error {
	if g.Name == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidEntity)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedBy = auth.ActorID(ctx)
	g.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO groups (id, name, description, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		g.ID, g.Name, nullableString(g.Description), g.CreatedBy, formatTime(g.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}
