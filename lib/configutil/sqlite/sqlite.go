package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Config struct {
	File string `json:"file"`
}

// OpenDB opens the sqlite database at the configured path and applies the
// schema. WAL keeps readers from blocking the scrape writers; the single
// connection sidesteps SQLITE_BUSY under modernc's driver.
func (c Config) OpenDB(schema string) (*sql.DB, error) {
	if c.File == "" {
		return nil, fmt.Errorf("no database file configured")
	}
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", c.File,
	))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
