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

// DeviceRepository defines device persistence. Devices are registered by
// the admin service; the core resolves them.
type DeviceRepository interface {
	// GetByID returns ErrDeviceNotFound for unknown or soft-deleted devices.
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*Device, error)

	// GetByExternalID resolves the GUID a device reports itself with.
	GetByExternalID(ctx context.Context, externalID string, opts ...ReadOption) (*Device, error)

	// List returns all devices ordered by name.
	List(ctx context.Context, opts ...ReadOption) ([]Device, error)

	Create(ctx context.Context, device *Device) error
	SoftDelete(ctx context.Context, id string) error
}

// SQLiteDeviceRepository implements DeviceRepository using SQLite.
type SQLiteDeviceRepository struct {
	db *sql.DB
}

// NewSQLiteDeviceRepository creates a new SQLite-backed device repository.
func NewSQLiteDeviceRepository(db *sql.DB) *SQLiteDeviceRepository {
	return &SQLiteDeviceRepository{db: db}
}

const deviceColumns = "id, external_id, name, kind, group_id, is_active, " + auditColumns

func (r *SQLiteDeviceRepository) GetByID(ctx context.Context, id string, opts ...ReadOption) (*Device, error) {
	return r.getOne(ctx, "id = ?", id, opts)
}

func (r *SQLiteDeviceRepository) GetByExternalID(ctx context.Context, externalID string, opts ...ReadOption) (*Device, error) {
	return r.getOne(ctx, "external_id = ?", externalID, opts)
}

func (r *SQLiteDeviceRepository) getOne(ctx context.Context, cond string, arg any, opts []ReadOption) (*Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices" + newScope(opts).where([]string{""}, cond)

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

func (r *SQLiteDeviceRepository) List(ctx context.Context, opts ...ReadOption) ([]Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices" + newScope(opts).where([]string{""}) + " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a device. Returns ErrDuplicate when the external id is taken.
func (r *SQLiteDeviceRepository) Create(ctx context.Context, d *Device) error {
	if d.ExternalID == "" || d.GroupID == "" {
		return fmt.Errorf("%w: device external id and group are required", ErrInvalidEntity)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Kind == "" {
		d.Kind = DeviceKindUnknown
	}
	d.CreatedBy = auth.ActorID(ctx)
	d.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, external_id, name, kind, group_id, is_active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ExternalID, d.Name, string(d.Kind), d.GroupID, d.IsActive, d.CreatedBy, formatTime(d.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// SoftDelete marks a device deleted. Returns ErrDeviceNotFound if it is
// unknown or already deleted.
func (r *SQLiteDeviceRepository) SoftDelete(ctx context.Context, id string) error {
	return softDelete(ctx, r.db, "devices", id, ErrDeviceNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var kind string
	var a auditScan
	if err := row.Scan(append([]any{&d.ID, &d.ExternalID, &d.Name, &kind, &d.GroupID, &d.IsActive}, a.targets(&d.Audit)...)...); err != nil {
		return nil, err
	}
	d.Kind = DeviceKind(kind)
	if err := a.apply(&d.Audit); err != nil {
		return nil, err
	}
	return &d, nil
}

// softDelete flags one live row of table as deleted with audit stamps.
func softDelete(ctx context.Context, db *sql.DB, table, id string, notFound error) error {
	result, err := db.ExecContext(ctx,
		"UPDATE "+table+" SET is_deleted = 1, last_modified_by = ?, last_modified_at = ? WHERE id = ? AND is_deleted = 0",
		auth.ActorID(ctx), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("soft deleting from %s: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
