package lazyorm

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ExecutorType selects how a QueryExecutor runs updates.
type ExecutorType int

const (
	// ExecutorSimple runs every update immediately.
	ExecutorSimple ExecutorType = iota
	// ExecutorBatch queues updates until FlushStatements, Commit or the next query.
	ExecutorBatch
)

// Configuration is shared by every executor of a DB: the statement registry
// and the lazy loading and caching settings.
// Settings are read while statements run and must not change afterwards;
// the registry itself is safe for concurrent use.
type Configuration struct {
	mu         sync.RWMutex
	statements map[string]*Statement

	// LazyLoadingEnabled defers associations whose FetchType is FetchDefault.
	LazyLoadingEnabled bool
	// AggressiveLazyLoading resolves every pending property on any proxy call.
	AggressiveLazyLoading bool
	// LazyLoadTriggerMethods resolve every pending property before they run.
	LazyLoadTriggerMethods []string

	LocalCacheScope CacheScope
	ExecutorType    ExecutorType
	// Environment is the last component of every cache key.
	Environment string

	// ExecutorFactory opens an executor for deferred loads whose owning
	// executor is gone, such as loads of a restored proxy.
	ExecutorFactory func() (*QueryExecutor, error)
	// Materializer converts raw rows; ScanMaterializer by default.
	Materializer RowMaterializer

	logFn func(messages ...any)
}

// NewConfiguration returns a Configuration with lazy loading enabled,
// session-scoped local caching and simple executors.
func NewConfiguration() *Configuration {
	return &Configuration{
		statements:             make(map[string]*Statement),
		LazyLoadingEnabled:     true,
		LazyLoadTriggerMethods: append([]string(nil), DefaultLazyLoadTriggerMethods...),
		LocalCacheScope:        ScopeSession,
		ExecutorType:           ExecutorSimple,
		Materializer:           ScanMaterializer{},
	}
}

// SetLog sets the logger used by executors, cursors and proxies.
func (c *Configuration) SetLog(fn func(messages ...any)) {
	c.logFn = fn
}

func (c *Configuration) log(messages ...any) {
	if c.logFn != nil {
		c.logFn(messages...)
	}
}

// AddStatement registers stmt under its id.
func (c *Configuration) AddStatement(stmt *Statement) error {
	if stmt == nil || stmt.ID == "" {
		return errors.Wrap(ErrValidation, "statement needs an id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statements == nil {
		c.statements = make(map[string]*Statement)
	}
	if _, ok := c.statements[stmt.ID]; ok {
		return errors.Wrap(ErrDuplicateStatement, stmt.ID)
	}
	c.statements[stmt.ID] = stmt
	return nil
}

// HasStatement reports whether id is registered.
func (c *Configuration) HasStatement(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.statements[id]
	return ok
}

// Statement looks up a registered statement.
func (c *Configuration) Statement(id string) (*Statement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stmt, ok := c.statements[id]
	if !ok {
		return nil, errors.Wrap(ErrStatementNotFound, id)
	}
	return stmt, nil
}

// StatementIDs lists the registered ids in order.
func (c *Configuration) StatementIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.statements))
	for id := range c.statements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Configuration) materializer() RowMaterializer {
	if c.Materializer == nil {
		return ScanMaterializer{}
	}
	return c.Materializer
}
