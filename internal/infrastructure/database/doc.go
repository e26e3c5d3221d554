// Package database provides SQLite storage for the capture archive.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations loaded from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// The pool is limited to a single connection; SQLite has one writer and the
// archive is written from the request path one capture at a time.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. Migrations are additive: new columns are NULLABLE or
// carry a DEFAULT.
package database
