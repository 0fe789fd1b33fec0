// Package database provides SQLite connectivity for the LUCID device directory.
//
// This package manages:
//   - Opening the database file (or an in-memory database) with WAL mode
//   - Versioned schema migrations read from an fs.FS
//   - Transaction helpers
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database
