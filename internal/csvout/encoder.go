// Package csvout serializes records as comma-delimited text: one header line
// naming the configured columns, then one line per record.
//
// Quoting follows the minimal RFC 4180 rule: a field is wrapped in double
// quotes only when it contains the delimiter, a double quote, CR or LF, and
// embedded quotes are doubled. Lines end with "\n". The same input always
// yields byte-identical output.
package csvout

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"pgexport/internal/record"
)

// Column maps a record field to an output column header.
type Column struct {
	Key    string // record field name
	Header string // text written in the header line
}

// DefaultColumns is the products export layout: ID,NAME.
var DefaultColumns = []Column{
	{Key: "id", Header: "ID"},
	{Key: "name", Header: "NAME"},
}

// SchemaViolation reports a record that lacks a configured column. It is
// fatal to an export: it means the query and the column layout disagree.
type SchemaViolation struct {
	Column string // missing record field
	Record int64  // 1-based ordinal of the offending record
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: record %d has no field %q", e.Record, e.Column)
}

// Options tunes the encoding.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// NormalizeNFC rewrites text values to Unicode NFC before quoting, so
	// visually identical names compare equal downstream.
	NormalizeNFC bool
}

// Encoder renders header and record lines. It is not safe for concurrent use.
type Encoder struct {
	cols  []Column
	comma string
	nfc   bool
	n     int64
}

// NewEncoder validates the column layout and returns an Encoder.
func NewEncoder(cols []Column, opts Options) (*Encoder, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("csvout: at least one column is required")
	}
	comma := opts.Comma
	if comma == 0 {
		comma = ','
	}
	if comma == '"' || comma == '\r' || comma == '\n' || !utf8.ValidRune(comma) || comma == utf8.RuneError {
		return nil, fmt.Errorf("csvout: invalid delimiter %q", comma)
	}
	for i, c := range cols {
		if c.Key == "" {
			return nil, fmt.Errorf("csvout: column %d has an empty key", i)
		}
	}
	cp := make([]Column, len(cols))
	copy(cp, cols)
	return &Encoder{cols: cp, comma: string(comma), nfc: opts.NormalizeNFC}, nil
}

// Header returns the header line, including the trailing newline.
func (e *Encoder) Header() []byte {
	var b []byte
	for i, c := range e.cols {
		if i > 0 {
			b = append(b, e.comma...)
		}
		b = e.appendField(b, c.Header)
	}
	return append(b, '\n')
}

// Line returns the encoded line for r, including the trailing newline. The
// returned slice is freshly allocated and owned by the caller.
func (e *Encoder) Line(r record.Record) ([]byte, error) {
	e.n++
	b := make([]byte, 0, 16*len(e.cols))
	for i, c := range e.cols {
		v, ok := r.Get(c.Key)
		if !ok {
			return nil, &SchemaViolation{Column: c.Key, Record: e.n}
		}
		if i > 0 {
			b = append(b, e.comma...)
		}
		b = e.appendField(b, formatValue(v))
	}
	return append(b, '\n'), nil
}

// Records reports how many records Line has been asked to encode.
func (e *Encoder) Records() int64 { return e.n }

func (e *Encoder) appendField(b []byte, s string) []byte {
	if e.nfc {
		s = norm.NFC.String(s)
	}
	if !e.needsQuotes(s) {
		return append(b, s...)
	}
	b = append(b, '"')
	b = append(b, strings.ReplaceAll(s, `"`, `""`)...)
	return append(b, '"')
}

func (e *Encoder) needsQuotes(s string) bool {
	return strings.Contains(s, e.comma) || strings.ContainsAny(s, "\"\r\n")
}

// formatValue renders a scalar the way it should appear in the file.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case driver.Valuer:
		// pgtype values (numeric, uuid, ...) know their own text form.
		dv, err := t.Value()
		if err != nil {
			return fmt.Sprint(v)
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Sprint(dv)
		}
		return formatValue(dv)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
