package lazyorm

import "github.com/pkg/errors"

// Statement is the identity of an executable query: an id unique within a
// Configuration, the source that binds it to a parameter, and the result map
// rows are materialized with.
type Statement struct {
	ID     string
	Source Source
	Result *ResultMap

	// FlushCache clears the executor's local cache before the statement runs.
	FlushCache bool
}

func (s *Statement) bind(param any) (Plan, error) {
	if s.Source == nil {
		return Plan{}, errors.Wrapf(ErrValidation, "statement %q has no source", s.ID)
	}
	plan, err := s.Source.Bind(param)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "bind %s", s.ID)
	}
	return plan, nil
}
