package jsonrows

import (
	"encoding/json"

	"github.com/tinywasm/lazyorm"
)

// Record is a schemaless model: the columns of the row it was read from and
// their decoded JSON values.
type Record struct {
	Table   string
	Columns []string
	Data    []any
}

func (r *Record) TableName() string { return r.Table }

func (r *Record) Schema() []lazyorm.Field {
	fields := make([]lazyorm.Field, len(r.Columns))
	for i, col := range r.Columns {
		fields[i] = lazyorm.Field{Name: col, Type: fieldType(r.Data[i])}
	}
	return fields
}

func (r *Record) Values() []any { return r.Data }

func (r *Record) Pointers() []any {
	ptrs := make([]any, len(r.Data))
	for i := range r.Data {
		ptrs[i] = &r.Data[i]
	}
	return ptrs
}

// Get returns the value of column.
func (r *Record) Get(column string) (any, bool) {
	for i, col := range r.Columns {
		if col == column {
			return r.Data[i], true
		}
	}
	return nil, false
}

// MarshalJSON writes the record back as one JSON object.
func (r *Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Columns))
	for i, col := range r.Columns {
		obj[col] = r.Data[i]
	}
	return json.Marshal(obj)
}

func fieldType(v any) lazyorm.FieldType {
	switch v.(type) {
	case float64:
		return lazyorm.TypeFloat64
	case bool:
		return lazyorm.TypeBool
	case string, nil:
		return lazyorm.TypeText
	}
	return lazyorm.TypeBlob
}

// Materializer turns each row into a *Record. The record's table is the
// result map id, or Table when the map has none.
type Materializer struct {
	Table string
}

func (m Materializer) Materialize(rows lazyorm.Rows, rm *lazyorm.ResultMap) (lazyorm.Model, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}
	table := m.Table
	if rm != nil && rm.ID != "" {
		table = rm.ID
	}
	rec := &Record{Table: table, Columns: cols, Data: make([]any, len(cols))}
	if err := rows.Scan(rec.Pointers()...); err != nil {
		return nil, false, err
	}
	if rm != nil && rm.Discriminator != nil && !rm.Discriminator(rec) {
		return nil, false, nil
	}
	return rec, true, nil
}

var _ lazyorm.RowMaterializer = Materializer{}
