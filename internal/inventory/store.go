package inventory

import (
	"context"
	"database/sql"

	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/database"
)

// Store bundles the SQLite repositories over one database and provides the
// multi-table writes that must commit together.
type Store struct {
	db *database.DB

	Groups      *SQLiteGroupRepository
	Devices     *SQLiteDeviceRepository
	Shelves     *SQLiteShelfRepository
	Items       *SQLiteItemRepository
	ScanHistory *SQLiteScanHistoryRepository
	ItemHistory *SQLiteItemHistoryRepository
}

// NewStore creates repositories over db. Migrations must already be applied.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:          db,
		Groups:      NewSQLiteGroupRepository(db.DB),
		Devices:     NewSQLiteDeviceRepository(db.DB),
		Shelves:     NewSQLiteShelfRepository(db.DB),
		Items:       NewSQLiteItemRepository(db.DB),
		ScanHistory: NewSQLiteScanHistoryRepository(db.DB),
		ItemHistory: NewSQLiteItemHistoryRepository(db.DB),
	}
}

// RecordLightChange appends entry and sets the shelf's lit flag in one
// transaction. Called only after the device acknowledged the command.
func (s *Store) RecordLightChange(ctx context.Context, shelfID string, isLitUp bool, entry *ItemHistory) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := appendItemHistory(ctx, tx, entry); err != nil {
			return err
		}
		return updateShelfLight(ctx, tx, shelfID, isLitUp)
	})
}

// ChangeItemStatus sets is_taken and appends entry in one transaction.
func (s *Store) ChangeItemStatus(ctx context.Context, itemID string, isTaken bool, entry *ItemHistory) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := updateItemStatus(ctx, tx, itemID, isTaken); err != nil {
			return err
		}
		entry.ItemID = itemID
		entry.IsTaken = isTaken
		return appendItemHistory(ctx, tx, entry)
	})
}
