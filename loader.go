package lazyorm

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// LoadPair is one deferred property: which statement fills it, with which
// parameter, and whether it receives one model or many.
type LoadPair struct {
	Property    string     `json:"property"`
	StatementID string     `json:"statement"`
	Param       any        `json:"param,omitempty"`
	Kind        ResultKind `json:"kind"`

	// stmt is looked up by StatementID when nil; key is rebuilt when empty.
	stmt *Statement
	key  CacheKey
}

// ResultLoaderMap tracks the deferred properties of one materialized model.
// Property names are matched case-insensitively. It is not safe for
// concurrent use on its own; Proxy serializes access to it.
type ResultLoaderMap struct {
	loaders map[string]*LoadPair
	exec    *QueryExecutor
	cfg     *Configuration
}

// NewResultLoaderMap returns an empty registry whose loads run on exec.
// When exec is nil or closed, loads run on an executor from cfg.ExecutorFactory.
func NewResultLoaderMap(exec *QueryExecutor, cfg *Configuration) *ResultLoaderMap {
	if cfg == nil && exec != nil {
		cfg = exec.cfg
	}
	return &ResultLoaderMap{
		loaders: make(map[string]*LoadPair),
		exec:    exec,
		cfg:     cfg,
	}
}

// Add registers pair. A property that already has a pending load is rejected.
func (m *ResultLoaderMap) Add(pair *LoadPair) error {
	if pair == nil || pair.Property == "" {
		return errors.Wrap(ErrValidation, "load pair needs a property")
	}
	key := propertyKey(pair.Property)
	if _, ok := m.loaders[key]; ok {
		return errors.Wrapf(ErrDuplicateLoader, "property %s, statement %s", pair.Property, pair.StatementID)
	}
	m.loaders[key] = pair
	return nil
}

// Size is the number of pending properties.
func (m *ResultLoaderMap) Size() int { return len(m.loaders) }

// HasLoader reports whether property is still pending.
func (m *ResultLoaderMap) HasLoader(property string) bool {
	_, ok := m.loaders[propertyKey(property)]
	return ok
}

// Properties lists the pending properties in a stable order.
func (m *ResultLoaderMap) Properties() []string {
	props := make([]string, 0, len(m.loaders))
	for _, p := range m.loaders {
		props = append(props, p.Property)
	}
	sort.Strings(props)
	return props
}

// Remove drops the pending load of property without running it.
func (m *ResultLoaderMap) Remove(property string) {
	delete(m.loaders, propertyKey(property))
}

// Load resolves property onto target if it is pending. On failure the load
// stays pending.
func (m *ResultLoaderMap) Load(ctx context.Context, property string, target Model) (bool, error) {
	key := propertyKey(property)
	pair, ok := m.loaders[key]
	if !ok {
		return false, nil
	}
	delete(m.loaders, key)
	if err := m.resolve(ctx, pair, target); err != nil {
		m.loaders[key] = pair
		return false, err
	}
	return true, nil
}

// LoadAll resolves every pending property onto target, stopping at the first failure.
func (m *ResultLoaderMap) LoadAll(ctx context.Context, target Model) error {
	for _, property := range m.Properties() {
		if _, err := m.Load(ctx, property, target); err != nil {
			return err
		}
	}
	return nil
}

// pairs copies the pending loads keyed by their property name.
func (m *ResultLoaderMap) pairs() map[string]*LoadPair {
	out := make(map[string]*LoadPair, len(m.loaders))
	for _, p := range m.loaders {
		cp := *p
		out[p.Property] = &cp
	}
	return out
}

func (m *ResultLoaderMap) resolve(ctx context.Context, pair *LoadPair, target Model) error {
	acc, ok := target.(PropertyAccessor)
	if !ok {
		return errors.Wrapf(ErrNoPropertyAccessor, "%T", target)
	}
	ex, release, err := m.executor()
	if err != nil {
		return errors.Wrapf(err, "load %s", pair.Property)
	}
	defer release()

	value, err := ex.loadPair(ctx, pair)
	if err != nil {
		return errors.Wrapf(err, "load %s", pair.Property)
	}
	return acc.SetProperty(pair.Property, value)
}

// executor picks the owning executor while it is open, otherwise a fresh one
// that is closed once the load is done.
func (m *ResultLoaderMap) executor() (*QueryExecutor, func(), error) {
	if m.exec != nil && !m.exec.IsClosed() {
		return m.exec, func() {}, nil
	}
	if m.cfg == nil || m.cfg.ExecutorFactory == nil {
		return nil, nil, ErrNoLoaderExecutor
	}
	ex, err := m.cfg.ExecutorFactory()
	if err != nil {
		return nil, nil, err
	}
	return ex, func() { _ = ex.Close(context.Background(), false) }, nil
}
