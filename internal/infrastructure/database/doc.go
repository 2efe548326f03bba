// Package database provides SQLite connectivity for the inventory store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Additive schema migrations embedded in the binary
//   - Transaction helpers
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. New columns must be NULLABLE or carry a DEFAULT.
package database
