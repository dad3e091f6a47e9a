// Package database handles the SQL connection behind the local collection store.
//
// It wraps GORM to configure either a MySQL server or a SQLite file,
// based on the application's configuration.
//
// # Connect
//
// Connect selects the dialector from Config.Driver, builds the DSN and
// verifies the connection with a bounded ping. Open is the shared tail of
// that path and accepts any dialector, which lets tests hand in a sqlmock
// connection.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return fmt.Errorf("collection unavailable: %w", err)
//	}
package database
