// Package sqlite registers a SQLite export source using the pure-Go
// modernc.org/sqlite driver. DSNs are file paths or URIs such as
// "file:products.db?mode=ro".
package sqlite

import (
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"pgexport/internal/source"
	"pgexport/internal/source/sqlrows"
)

// Dialect is the SQLite flavour of the export query.
var Dialect = source.Dialect{
	Name:        "sqlite",
	QuoteIdent:  source.QuoteDouble,
	Placeholder: func(int) string { return "?" },
}

func init() {
	sqlrows.Register("sqlite", "sqlite", Dialect, func(dsn string) error {
		if strings.TrimSpace(dsn) == "" {
			return errors.New("DSN must not be empty")
		}
		return nil
	})
}
