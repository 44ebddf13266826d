package source

import "strings"

// Dialect captures the SQL differences between backends that matter for the
// export query: identifier quoting and bind placeholder syntax.
type Dialect struct {
	Name        string
	QuoteIdent  func(id string) string
	Placeholder func(n int) string
}

// Query describes the fixed export query. It is resolved into SQL once, at
// open time, and never changes afterwards.
type Query struct {
	Table        string   // optionally schema qualified, e.g. "public.products"
	Columns      []string // selected columns, in output order
	FilterColumn string   // numeric column compared against the threshold
	OrderBy      string   // optional column; empty keeps the natural order
}

// SQL renders
//
//	SELECT <cols> FROM <table> WHERE <filter> >= <placeholder 1> [ORDER BY <col>]
//
// using d for quoting. The threshold is always bound as parameter 1.
func (q Query) SQL(d Dialect) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range q.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteQualified(d, q.Table))
	if q.FilterColumn != "" {
		b.WriteString(" WHERE ")
		b.WriteString(d.QuoteIdent(q.FilterColumn))
		b.WriteString(" >= ")
		b.WriteString(d.Placeholder(1))
	}
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(d.QuoteIdent(q.OrderBy))
	}
	return b.String()
}

// HasParam reports whether the rendered SQL expects the threshold argument.
func (q Query) HasParam() bool { return q.FilterColumn != "" }

// quoteQualified quotes each dot-separated segment of a possibly schema
// qualified name.
func quoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, d.QuoteIdent(p))
		}
	}
	return strings.Join(out, ".")
}

// QuoteDouble quotes an identifier with double quotes (ANSI, Postgres, SQLite).
func QuoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
