// Package record defines the unit of data that flows through an export: a
// Record is one row read from the source, and a Batch is the group of rows
// returned by a single cursor fetch.
package record

// Field is a single named value inside a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of named scalar values. A Record is immutable once
// constructed; stages hand it downstream by value and never mutate it.
type Record struct {
	fields []Field
}

// New builds a Record from parallel column and value slices. Extra values
// beyond len(columns) are ignored; missing values are simply absent, which
// lets the serializer report the gap as a schema violation.
func New(columns []string, values []any) Record {
	n := len(columns)
	if len(values) < n {
		n = len(values)
	}
	fields := make([]Field, n)
	for i := 0; i < n; i++ {
		fields[i] = Field{Name: columns[i], Value: values[i]}
	}
	return Record{fields: fields}
}

// Of is a convenience constructor used mostly by tests and fakes.
func Of(fields ...Field) Record {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Record{fields: cp}
}

// Get returns the value for name and whether the field is present.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns a copy of the record's fields in source order.
func (r Record) Fields() []Field {
	cp := make([]Field, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Batch is an ordered group of records fetched together. Its length never
// exceeds the batch capacity the source was opened with.
type Batch []Record

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b) }
