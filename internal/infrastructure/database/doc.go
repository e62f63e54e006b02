// Package database opens the automation service's SQLite database and
// applies its schema migrations.
//
// The database holds the entity registry and the audit trail. WAL mode lets
// API reads proceed while the recorder writes; the pool is capped at one
// connection because SQLite has a single writer.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
