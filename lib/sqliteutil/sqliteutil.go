package sqliteutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Config selects between a local sqlite file and a remote libsql database,
// Url takes precedence when both are set.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

// OpenDB opens the configured database and applies schema to it. Schema
// statements are expected to be idempotent (CREATE ... IF NOT EXISTS).
func (c Config) OpenDB(schema string) (*sql.DB, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	if schema != "" {
		_, err = db.Exec(schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func (c Config) open() (*sql.DB, error) {
	if c.Url != "" {
		values := url.Values{}
		if c.AuthToken != "" {
			values.Add("authToken", c.AuthToken)
		}
		target := c.Url
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
		return sql.Open("libsql", target)
	}

	if c.File == "" {
		return nil, fmt.Errorf("neither a database file nor url was specified")
	}
	return OpenFile(c.File)
}

// OpenFile opens (and creates if needed) a sqlite database at path using
// the pure go driver, ":memory:" is accepted as well.
func OpenFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
