// Package database manages the SQLite connection backing the audit trail.
//
// The device registry itself is deliberately in-memory; SQLite holds only
// durable operational records (the audit log of fleet mutations).
//
// This package provides:
//   - Connection lifecycle with WAL mode and busy-timeout pragmas
//   - Embedded schema migrations (see the migrations package)
//   - Health checks for monitoring
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Thread Safety: the pool is capped at one open connection to match
// SQLite's single-writer model; callers may share the DB freely.
package database
