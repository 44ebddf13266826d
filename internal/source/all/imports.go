// Package all wires every built-in export source into the source factory.
// It exists purely for side effects:
//
//	import _ "pgexport/internal/source/all"
//
// makes the "postgres", "sqlite", "mysql" and "mssql" kinds available to
// source.New.
package all

import (
	_ "pgexport/internal/source/mssql"
	_ "pgexport/internal/source/mysql"
	_ "pgexport/internal/source/postgres"
	_ "pgexport/internal/source/sqlite"
)
