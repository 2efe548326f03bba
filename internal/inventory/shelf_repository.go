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

// ShelfRepository defines shelf persistence.
type ShelfRepository interface {
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*Shelf, error)

	// GetByDeviceAndPosition resolves the shelf a controller reports by
	// rack position.
	GetByDeviceAndPosition(ctx context.Context, deviceID string, position int, opts ...ReadOption) (*Shelf, error)

	// UpdateLightState persists is_lit_up with audit stamps.
	UpdateLightState(ctx context.Context, id string, isLitUp bool) error

	Create(ctx context.Context, shelf *Shelf) error
}

// SQLiteShelfRepository implements ShelfRepository using SQLite.
type SQLiteShelfRepository struct {
	db *sql.DB
}

// NewSQLiteShelfRepository creates a new SQLite-backed shelf repository.
func NewSQLiteShelfRepository(db *sql.DB) *SQLiteShelfRepository {
	return &SQLiteShelfRepository{db: db}
}

const shelfColumns = "id, name, position_in_rack, is_lit_up, group_id, device_id, " + auditColumns

func (r *SQLiteShelfRepository) GetByID(ctx context.Context, id string, opts ...ReadOption) (*Shelf, error) {
	query := "SELECT " + shelfColumns + " FROM shelves" + newScope(opts).where([]string{""}, "id = ?")
	return r.getOne(ctx, query, id)
}

func (r *SQLiteShelfRepository) GetByDeviceAndPosition(ctx context.Context, deviceID string, position int, opts ...ReadOption) (*Shelf, error) {
	query := "SELECT " + shelfColumns + " FROM shelves" +
		newScope(opts).where([]string{""}, "device_id = ?", "position_in_rack = ?") +
		" ORDER BY created_at LIMIT 1"
	return r.getOne(ctx, query, deviceID, position)
}

func (r *SQLiteShelfRepository) getOne(ctx context.Context, query string, args ...any) (*Shelf, error) {
	var s Shelf
	var a auditScan
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		append([]any{&s.ID, &s.Name, &s.PositionInRack, &s.IsLitUp, &s.GroupID, &s.DeviceID}, a.targets(&s.Audit)...)...,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShelfNotFound
		}
		return nil, fmt.Errorf("querying shelf: %w", err)
	}
	if err := a.apply(&s.Audit); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteShelfRepository) UpdateLightState(ctx context.Context, id string, isLitUp bool) error {
	return updateShelfLight(ctx, r.db, id, isLitUp)
}

// Create inserts a shelf, generating its id when empty.
func (r *SQLiteShelfRepository) Create(ctx context.Context, s *Shelf) error {
	if s.PositionInRack < 1 {
		return fmt.Errorf("%w: shelf position must be at least 1", ErrInvalidEntity)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedBy = auth.ActorID(ctx)
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shelves (id, name, position_in_rack, is_lit_up, group_id, device_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.PositionInRack, s.IsLitUp, s.GroupID, s.DeviceID, s.CreatedBy, formatTime(s.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting shelf: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateShelfLight(ctx context.Context, db execer, id string, isLitUp bool) error {
	result, err := db.ExecContext(ctx,
		"UPDATE shelves SET is_lit_up = ?, last_modified_by = ?, last_modified_at = ? WHERE id = ? AND is_deleted = 0",
		isLitUp, auth.ActorID(ctx), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating shelf light state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrShelfNotFound
	}
	return nil
}
