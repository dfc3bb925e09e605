package lazyorm

// Action is the kind of statement a Query describes.
type Action int

const (
	ActionCreate Action = iota
	ActionReadOne
	ActionUpdate
	ActionDelete
	ActionReadAll
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionReadOne:
		return "readOne"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionReadAll:
		return "readAll"
	}
	return "unknown"
}

// Order is one ORDER BY term, added with QB.OrderBy().
type Order struct {
	column string
	dir    string
}

func (o Order) Column() string { return o.column }
func (o Order) Dir() string    { return o.dir }

// Query is the builder's description of a statement. A Planner turns it into
// the Plan a Conn runs; QuerySource does that while a statement is bound.
type Query struct {
	Action     Action
	Table      string
	Columns    []string
	Values     []any
	Conditions []Condition
	OrderBy    []Order
	GroupBy    []string
	Limit      int
	Offset     int
}
