// Package mssql registers a Microsoft SQL Server export source using
// go-mssqldb.
package mssql

import (
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"pgexport/internal/source"
	"pgexport/internal/source/sqlrows"
)

// Dialect is the T-SQL flavour of the export query.
var Dialect = source.Dialect{
	Name:        "mssql",
	QuoteIdent:  func(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" },
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
}

func init() {
	sqlrows.Register("mssql", "sqlserver", Dialect, func(dsn string) error {
		_, err := msdsn.Parse(dsn)
		return err
	})
}
