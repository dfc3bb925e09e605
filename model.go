package lazyorm

// Model represents a database model.
// Consumers implement this interface.
type Model interface {
	TableName() string
	Schema() []Field
	Values() []any
	Pointers() []any
}

// PropertyAccessor reads and writes association properties by name.
// Models that declare associations must implement it; ormc generates it
// for every []Child relation field.
type PropertyAccessor interface {
	GetProperty(name string) (any, error)
	SetProperty(name string, value any) error
}

// Associated is implemented by models that carry their own association metadata.
// QB picks it up when building the result map for a read.
type Associated interface {
	Associations() []Association
}

// columnValue returns the value of the named schema column of m.
func columnValue(m Model, column string) (any, bool) {
	schema := m.Schema()
	values := m.Values()
	for i, f := range schema {
		if f.Name == column && i < len(values) {
			return values[i], true
		}
	}
	return nil, false
}
