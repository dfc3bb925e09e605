package lazyorm

import (
	"strings"

	"github.com/tinywasm/fmt"
)

// Plan describes how the Conn should run the operation.
type Plan struct {
	Mode  Action
	Query string
	Args  []any
}

// Planner converts ORM queries into engine instructions.
type Planner interface {
	Plan(q Query, m Model) (Plan, error)
}

// Source produces the executable form of a statement for one parameter value.
type Source interface {
	Bind(param any) (Plan, error)
}

// QuerySource binds a builder Query through a Planner.
// The parameter, when it is a Model, is handed to the planner.
type QuerySource struct {
	Query   Query
	Planner Planner
}

func (s QuerySource) Bind(param any) (Plan, error) {
	m, _ := param.(Model)
	return s.Planner.Plan(s.Query, m)
}

// StaticSQL is a fixed SQL text whose placeholders are bound, in order,
// to the named parameter properties. An empty name binds the parameter itself,
// which is how a scalar foreign key reaches a nested select.
type StaticSQL struct {
	Mode   Action
	SQL    string
	Params []string
}

func (s StaticSQL) Bind(param any) (Plan, error) {
	if strings.TrimSpace(s.SQL) == "" {
		return Plan{}, fmt.Err(ErrValidation, "static statement has no sql")
	}
	args := make([]any, 0, len(s.Params))
	for _, name := range s.Params {
		v, err := paramValue(param, name)
		if err != nil {
			return Plan{}, err
		}
		args = append(args, v)
	}
	return Plan{Mode: s.Mode, Query: s.SQL, Args: args}, nil
}

func paramValue(param any, name string) (any, error) {
	if name == "" {
		return param, nil
	}
	switch p := param.(type) {
	case map[string]any:
		if v, ok := p[name]; ok {
			return v, nil
		}
	case Model:
		if v, ok := columnValue(p, name); ok {
			return v, nil
		}
	}
	return nil, fmt.Err(ErrValidation, "parameter", name, "not found")
}
