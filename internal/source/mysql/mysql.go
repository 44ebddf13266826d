// Package mysql registers a MySQL export source using go-sql-driver/mysql.
package mysql

import (
	"strings"

	"github.com/go-sql-driver/mysql"

	"pgexport/internal/source"
	"pgexport/internal/source/sqlrows"
)

// Dialect is the MySQL flavour of the export query.
var Dialect = source.Dialect{
	Name:        "mysql",
	QuoteIdent:  func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	Placeholder: func(int) string { return "?" },
}

func init() {
	sqlrows.Register("mysql", "mysql", Dialect, func(dsn string) error {
		_, err := mysql.ParseDSN(dsn)
		return err
	})
}
