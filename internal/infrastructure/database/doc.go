// Package database opens the SQLite store behind the diagnostics log and
// applies its schema migrations.
//
// The default path is ":memory:": diagnostic history lasts as long as the
// process. Point database.path at a file to keep it across restarts.
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
package database
