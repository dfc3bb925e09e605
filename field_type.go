package lazyorm

// FieldType is the storage type of a schema column.
type FieldType int

const (
	TypeText FieldType = iota
	TypeInt64
	TypeFloat64
	TypeBool
	TypeBlob
)

func (t FieldType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeBlob:
		return "blob"
	}
	return "unknown"
}

// Constraint is a bitmask of column constraints.
type Constraint int

const ConstraintNone Constraint = 0

const (
	ConstraintPK            Constraint = 1 << iota // primary key, detected with fmt.IDorPrimaryKey
	ConstraintUnique                               // UNIQUE
	ConstraintNotNull                              // NOT NULL
	ConstraintAutoIncrement                        // SERIAL / AUTOINCREMENT
)

// Has reports whether every bit of o is set in c.
func (c Constraint) Has(o Constraint) bool { return c&o == o }

// Field is one column of a model's schema. Schema() and Values() list
// columns in the same order. Ref and RefColumn name the foreign key target;
// an empty RefColumn means the primary key of Ref.
type Field struct {
	Name        string
	Type        FieldType
	Constraints Constraint
	Ref         string
	RefColumn   string
}

// primaryKey returns the first column of schema flagged ConstraintPK.
func primaryKey(schema []Field) (Field, bool) {
	for _, f := range schema {
		if f.Constraints.Has(ConstraintPK) {
			return f, true
		}
	}
	return Field{}, false
}
