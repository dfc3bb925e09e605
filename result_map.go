package lazyorm

import "github.com/pkg/errors"

// ResultKind is the shape a nested load assigns onto its property.
type ResultKind int

const (
	// KindMany assigns a []Model.
	KindMany ResultKind = iota
	// KindOne assigns a single Model, or nil when no row matched.
	KindOne
)

// FetchType overrides the configuration-wide lazy loading switch for one association.
type FetchType int

const (
	FetchDefault FetchType = iota
	FetchLazy
	FetchEager
)

// Association describes a property filled by a nested select.
// Column names the owner's schema column whose value becomes the nested
// parameter; empty means the owner's primary key.
type Association struct {
	Property string
	Select   string
	Column   string
	Kind     ResultKind
	Fetch    FetchType
}

func (a Association) lazy(cfg *Configuration) bool {
	switch a.Fetch {
	case FetchLazy:
		return true
	case FetchEager:
		return false
	}
	return cfg.LazyLoadingEnabled
}

// ResultMap is the mapping metadata a RowMaterializer consumes for one row.
// New allocates the target model; Discriminator, when set, drops rows it rejects.
type ResultMap struct {
	ID            string
	New           func() Model
	Discriminator func(Model) bool
	Associations  []Association
}

// extract shapes the rows of a nested load for assignment onto a property.
func extract(list []Model, kind ResultKind) (any, error) {
	switch kind {
	case KindOne:
		switch len(list) {
		case 0:
			return nil, nil
		case 1:
			return list[0], nil
		}
		return nil, errors.Wrapf(ErrTooManyResults, "got %d rows", len(list))
	default:
		out := make([]Model, len(list))
		copy(out, list)
		return out, nil
	}
}
