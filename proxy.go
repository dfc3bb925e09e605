package lazyorm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// Proxy stands in for a materialized model whose association properties are
// still deferred. It implements Model and PropertyAccessor by forwarding to
// the real model, resolving pending properties on the way:
//
//   - no pending property, or Finalize: forward
//   - aggressive mode or a trigger method (Equal, Clone, String): resolve all, forward
//   - Set<Prop>: drop the pending load of Prop, forward
//   - Get<Prop>/Is<Prop> with a pending load: resolve Prop, forward
//   - anything else: forward
//
// Each call runs under the proxy's mutex. The context handed to loaders
// carries the proxy, so calls made with it while the lock is held re-enter
// without blocking.
type Proxy struct {
	mu         sync.Mutex
	target     Model
	loader     *ResultLoaderMap
	aggressive bool
	triggers   map[string]struct{}
	logFn      func(messages ...any)
}

type proxyHold struct{ p *Proxy }

type accessKind int

const (
	accessOther accessKind = iota
	accessGet
	accessSet
)

// call is one intercepted method. property is set for accessGet/accessSet.
type call struct {
	method   string
	kind     accessKind
	property string
}

// methodCall classifies method by its accessor prefix.
func methodCall(method string) call {
	switch {
	case isSetter(method):
		return call{method: method, kind: accessSet, property: methodToProperty(method)}
	case isGetter(method):
		return call{method: method, kind: accessGet, property: methodToProperty(method)}
	}
	return call{method: method}
}

// NewProxy wraps target. Lazy loading settings come from cfg, which may be nil.
func NewProxy(target Model, loader *ResultLoaderMap, cfg *Configuration) *Proxy {
	p := &Proxy{
		target:   target,
		loader:   loader,
		triggers: make(map[string]struct{}),
	}
	methods := DefaultLazyLoadTriggerMethods
	if cfg != nil {
		p.aggressive = cfg.AggressiveLazyLoading
		if cfg.LazyLoadTriggerMethods != nil {
			methods = cfg.LazyLoadTriggerMethods
		}
		p.logFn = cfg.logFn
	}
	for _, m := range methods {
		p.triggers[m] = struct{}{}
	}
	return p
}

// Invoke applies the interception rules for method and then runs fn against
// the real model, all under the proxy's lock. fn may be nil.
func (p *Proxy) Invoke(ctx context.Context, method string, fn func(ctx context.Context, target Model) error) error {
	return p.invoke(ctx, methodCall(method), fn)
}

func (p *Proxy) invoke(ctx context.Context, c call, fn func(ctx context.Context, target Model) error) error {
	if ctx.Value(proxyHold{p}) == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		ctx = context.WithValue(ctx, proxyHold{p}, true)
	}
	if err := p.intercept(ctx, c); err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, p.target)
}

func (p *Proxy) intercept(ctx context.Context, c call) error {
	if p.loader.Size() == 0 || c.method == FinalizeMethod {
		return nil
	}
	if _, trigger := p.triggers[c.method]; p.aggressive || trigger {
		return p.loader.LoadAll(ctx, p.target)
	}
	switch c.kind {
	case accessSet:
		p.loader.Remove(c.property)
	case accessGet:
		if p.loader.HasLoader(c.property) {
			_, err := p.loader.Load(ctx, c.property, p.target)
			return err
		}
	}
	return nil
}

// Target returns the real model without resolving anything.
func (p *Proxy) Target() Model { return p.target }

// Pending lists the properties that have not been loaded yet.
func (p *Proxy) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loader.Properties()
}

// Get reads property, loading it first if it is pending.
func (p *Proxy) Get(ctx context.Context, property string) (any, error) {
	var v any
	err := p.invoke(ctx, call{method: "Get" + property, kind: accessGet, property: property}, func(_ context.Context, t Model) error {
		acc, ok := t.(PropertyAccessor)
		if !ok {
			return errors.Wrapf(ErrNoPropertyAccessor, "%T", t)
		}
		var err error
		v, err = acc.GetProperty(property)
		return err
	})
	return v, err
}

// Set assigns property. A pending load of property is dropped, never run.
func (p *Proxy) Set(ctx context.Context, property string, value any) error {
	return p.invoke(ctx, call{method: "Set" + property, kind: accessSet, property: property}, func(_ context.Context, t Model) error {
		acc, ok := t.(PropertyAccessor)
		if !ok {
			return errors.Wrapf(ErrNoPropertyAccessor, "%T", t)
		}
		return acc.SetProperty(property, value)
	})
}

func (p *Proxy) GetProperty(name string) (any, error) {
	return p.Get(context.Background(), name)
}

func (p *Proxy) SetProperty(name string, value any) error {
	return p.Set(context.Background(), name, value)
}

func (p *Proxy) TableName() string {
	p.forward("TableName")
	return p.target.TableName()
}

func (p *Proxy) Schema() []Field {
	p.forward("Schema")
	return p.target.Schema()
}

func (p *Proxy) Values() []any {
	p.forward("Values")
	return p.target.Values()
}

func (p *Proxy) Pointers() []any {
	p.forward("Pointers")
	return p.target.Pointers()
}

// forward runs the interception rules for calls that cannot report an error.
func (p *Proxy) forward(method string) {
	if err := p.Invoke(context.Background(), method, nil); err != nil {
		p.log("lazyorm: deferred load before", method, "failed:", err)
	}
}

// String resolves every pending property and formats the real model.
func (p *Proxy) String() string {
	var s string
	err := p.Invoke(context.Background(), "String", func(_ context.Context, t Model) error {
		s = fmt.Sprint(t)
		return nil
	})
	if err != nil {
		p.log("lazyorm: deferred load before String failed:", err)
	}
	return s
}

// exportAll lets cmp.Equal read the unexported fields of models.
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Equal resolves both sides and compares the real models. Models with an
// Equal(Model) bool method decide for themselves; others are compared deeply.
func (p *Proxy) Equal(other Model) bool {
	if op, ok := other.(*Proxy); ok {
		if op == p {
			return p.Invoke(context.Background(), "Equal", nil) == nil
		}
		resolved, err := op.Clone()
		if err != nil {
			p.log("lazyorm: deferred load before Equal failed:", err)
			return false
		}
		other = resolved
	}
	equal := false
	err := p.Invoke(context.Background(), "Equal", func(_ context.Context, t Model) error {
		if eq, ok := t.(interface{ Equal(Model) bool }); ok {
			equal = eq.Equal(other)
			return nil
		}
		equal = other != nil && cmp.Equal(t, other, exportAll)
		return nil
	})
	if err != nil {
		p.log("lazyorm: deferred load before Equal failed:", err)
		return false
	}
	return equal
}

// Clone resolves every pending property and returns a plain copy of the real model.
func (p *Proxy) Clone() (Model, error) {
	var cp Model
	err := p.Invoke(context.Background(), "Clone", func(_ context.Context, t Model) error {
		var err error
		cp, err = shallowCopy(t)
		return err
	})
	return cp, err
}

// WriteReplace is the serialization hook. It returns a plain copy of the real
// model, or a *SerialState carrying that copy and the loads still pending.
// Nothing is loaded.
func (p *Proxy) WriteReplace() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	original, err := shallowCopy(p.target)
	if err != nil {
		return nil, err
	}
	if p.loader.Size() > 0 {
		return &SerialState{Object: original, Unloaded: p.loader.pairs()}, nil
	}
	return original, nil
}

func (p *Proxy) MarshalJSON() ([]byte, error) {
	v, err := p.WriteReplace()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (p *Proxy) log(messages ...any) {
	if p.logFn != nil {
		p.logFn(messages...)
	}
}

// shallowCopy copies every field of the struct m points to, unexported ones
// included, into a new instance.
func shallowCopy(m Model) (Model, error) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrValidation, "cannot copy %T: not a pointer to struct", m)
	}
	cp := reflect.New(rv.Elem().Type())
	cp.Elem().Set(rv.Elem())
	out, ok := cp.Interface().(Model)
	if !ok {
		return nil, errors.Wrapf(ErrValidation, "copy of %T is not a Model", m)
	}
	return out, nil
}
