// Package database provides the SQLite connection and schema migrations.
//
// The database holds the attribute change history and the write log. WAL
// mode is enabled by default so that API reads do not wait on history
// inserts. Migrations are embedded by the migrations package and applied at
// startup; each file pair is YYYYMMDD_HHMMSS_name.up.sql / .down.sql.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
