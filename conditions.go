package lazyorm

// Condition is one filter of a Query. Build it with Eq, Neq, Gt, Gte, Lt,
// Lte or Like; the zero logic joins it with AND, Or switches it to OR.
type Condition struct {
	field    string
	operator string
	value    any
	logic    string
}

func (c Condition) Field() string    { return c.field }
func (c Condition) Operator() string { return c.operator }
func (c Condition) Value() any       { return c.value }
func (c Condition) Logic() string    { return c.logic }

func where(field, operator string, value any) Condition {
	return Condition{field: field, operator: operator, value: value, logic: "AND"}
}

// Eq matches field = value.
func Eq(field string, value any) Condition { return where(field, "=", value) }

// Neq matches field != value.
func Neq(field string, value any) Condition { return where(field, "!=", value) }

// Gt matches field > value.
func Gt(field string, value any) Condition { return where(field, ">", value) }

// Gte matches field >= value.
func Gte(field string, value any) Condition { return where(field, ">=", value) }

// Lt matches field < value.
func Lt(field string, value any) Condition { return where(field, "<", value) }

// Lte matches field <= value.
func Lte(field string, value any) Condition { return where(field, "<=", value) }

// Like matches field LIKE pattern.
func Like(field string, pattern any) Condition { return where(field, "LIKE", pattern) }

// Or joins c to the previous condition with OR.
func Or(c Condition) Condition {
	c.logic = "OR"
	return c
}
