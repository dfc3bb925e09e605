package lazyorm_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tinywasm/lazyorm"
)

// MockPlanner captures the query and returns a predefined plan.
type MockPlanner struct {
	LastQuery  lazyorm.Query
	LastModel  lazyorm.Model
	ReturnPlan lazyorm.Plan
	ReturnErr  error
}

func (m *MockPlanner) Plan(q lazyorm.Query, model lazyorm.Model) (lazyorm.Plan, error) {
	m.LastQuery = q
	m.LastModel = model
	if m.ReturnPlan.Query == "" {
		m.ReturnPlan.Query = "MOCK_QUERY"
	}
	return m.ReturnPlan, m.ReturnErr
}

// MockConn captures execution calls. Results, when it has an entry for the
// query text, builds the rows for that query from its arguments.
type MockConn struct {
	mu              sync.Mutex
	ExecutedQueries []string
	ExecutedArgs    [][]any
	ReturnExecErr   error
	ReturnExecCount int64
	ReturnQueryRows *MockRows
	ReturnQueryErr  error
	Results         map[string]func(args []any) *MockRows
	QueryErrs       map[string]error
	queries         map[string]int
	execs           int
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecutedQueries = append(m.ExecutedQueries, query)
	m.ExecutedArgs = append(m.ExecutedArgs, args)
	m.execs++
	return m.ReturnExecCount, m.ReturnExecErr
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (lazyorm.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecutedQueries = append(m.ExecutedQueries, query)
	m.ExecutedArgs = append(m.ExecutedArgs, args)
	if m.queries == nil {
		m.queries = make(map[string]int)
	}
	m.queries[query]++
	if err := m.QueryErrs[query]; err != nil {
		return nil, err
	}
	if m.ReturnQueryErr != nil {
		return nil, m.ReturnQueryErr
	}
	if build := m.Results[query]; build != nil {
		return build(args), nil
	}
	if m.ReturnQueryRows == nil {
		return &MockRows{}, nil
	}
	return m.ReturnQueryRows, nil
}

// QueryCount is the number of times query reached the connection.
func (m *MockConn) QueryCount(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[query]
}

func (m *MockConn) ExecCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execs
}

// MockRows yields Data row by row, or Count empty rows when Data is nil.
// ScanErr fails the scan of row FailAt (1-based, 0 means every row).
type MockRows struct {
	Cols     []string
	Data     [][]any
	Count    int
	Current  int
	ScanErr  error
	FailAt   int
	CloseErr error
	ErrVal   error
	Closed   bool
	Closes   int
}

func (m *MockRows) Next() bool {
	total := m.Count
	if m.Data != nil {
		total = len(m.Data)
	}
	if m.Current < total {
		m.Current++
		return true
	}
	return false
}

func (m *MockRows) Scan(dest ...any) error {
	if m.ScanErr != nil && (m.FailAt == 0 || m.FailAt == m.Current) {
		return m.ScanErr
	}
	if m.Data == nil {
		return nil
	}
	row := m.Data[m.Current-1]
	for i := 0; i < len(dest) && i < len(row); i++ {
		if row[i] == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (m *MockRows) Close() error {
	m.Closed = true
	m.Closes++
	return m.CloseErr
}

func (m *MockRows) Err() error {
	return m.ErrVal
}

func (m *MockRows) Columns() ([]string, error) {
	return m.Cols, nil
}

// MockModel is a mock implementation of the Model interface.
type MockModel struct {
	Table string
	Cols  []string
	Vals  []any
}

func (m MockModel) TableName() string { return m.Table }

func (m MockModel) Schema() []lazyorm.Field {
	fields := make([]lazyorm.Field, len(m.Cols))
	for i, c := range m.Cols {
		fields[i] = lazyorm.Field{Name: c}
	}
	return fields
}

func (m MockModel) Values() []any   { return m.Vals }
func (m MockModel) Pointers() []any { return nil }

// MockTxConn ...
type MockTxConn struct {
	MockConn
	Bound      *MockTxBoundConn
	BeginTxErr error
}

func (m *MockTxConn) BeginTx(ctx context.Context) (lazyorm.TxBoundConn, error) {
	if m.BeginTxErr != nil {
		return nil, m.BeginTxErr
	}
	if m.Bound == nil {
		m.Bound = &MockTxBoundConn{}
	}
	return m.Bound, nil
}

type MockTxBoundConn struct {
	MockConn
	CommitCalled   bool
	RollbackCalled bool
	CommitErr      error
	RollbackErr    error
}

func (m *MockTxBoundConn) Commit() error {
	m.CommitCalled = true
	return m.CommitErr
}

func (m *MockTxBoundConn) Rollback() error {
	m.RollbackCalled = true
	return m.RollbackErr
}

// Author owns a lazy list of posts and a lazy profile.
type Author struct {
	ID      int64
	Name    string
	Posts   []*Post
	Profile *Profile
}

func (a *Author) TableName() string { return "authors" }

func (a *Author) Schema() []lazyorm.Field {
	return []lazyorm.Field{
		{Name: "id", Type: lazyorm.TypeInt64, Constraints: lazyorm.ConstraintPK},
		{Name: "name", Type: lazyorm.TypeText},
	}
}

func (a *Author) Values() []any   { return []any{a.ID, a.Name} }
func (a *Author) Pointers() []any { return []any{&a.ID, &a.Name} }

func (a *Author) GetProperty(name string) (any, error) {
	switch name {
	case "Posts":
		return a.Posts, nil
	case "Profile":
		return a.Profile, nil
	}
	return nil, lazyorm.ErrUnknownProperty
}

func (a *Author) SetProperty(name string, value any) error {
	switch name {
	case "Posts":
		switch v := value.(type) {
		case nil:
			a.Posts = nil
		case []*Post:
			a.Posts = v
		case []lazyorm.Model:
			a.Posts = make([]*Post, 0, len(v))
			for _, m := range v {
				p, ok := m.(*Post)
				if !ok {
					return lazyorm.ErrValidation
				}
				a.Posts = append(a.Posts, p)
			}
		default:
			return lazyorm.ErrValidation
		}
		return nil
	case "Profile":
		switch v := value.(type) {
		case nil:
			a.Profile = nil
		case *Profile:
			a.Profile = v
		default:
			return lazyorm.ErrValidation
		}
		return nil
	}
	return lazyorm.ErrUnknownProperty
}

// Associations leaves the Posts column empty so the primary key is used.
func (a *Author) Associations() []lazyorm.Association {
	return []lazyorm.Association{
		{Property: "Posts", Select: "posts.byAuthorID", Kind: lazyorm.KindMany},
		{Property: "Profile", Select: "profiles.byAuthorID", Column: "id", Kind: lazyorm.KindOne},
	}
}

type Post struct {
	ID       int64
	AuthorID int64
	Title    string
	Author   *Author
}

func (p *Post) TableName() string { return "posts" }

func (p *Post) Schema() []lazyorm.Field {
	return []lazyorm.Field{
		{Name: "id", Type: lazyorm.TypeInt64, Constraints: lazyorm.ConstraintPK},
		{Name: "author_id", Type: lazyorm.TypeInt64, Ref: "authors"},
		{Name: "title", Type: lazyorm.TypeText},
	}
}

func (p *Post) Values() []any   { return []any{p.ID, p.AuthorID, p.Title} }
func (p *Post) Pointers() []any { return []any{&p.ID, &p.AuthorID, &p.Title} }

func (p *Post) GetProperty(name string) (any, error) {
	if name == "Author" {
		return p.Author, nil
	}
	return nil, lazyorm.ErrUnknownProperty
}

func (p *Post) SetProperty(name string, value any) error {
	if name != "Author" {
		return lazyorm.ErrUnknownProperty
	}
	switch v := value.(type) {
	case nil:
		p.Author = nil
	case *Author:
		p.Author = v
	default:
		return lazyorm.ErrValidation
	}
	return nil
}

type Profile struct {
	AuthorID int64
	Bio      string
}

func (p *Profile) TableName() string { return "profiles" }

func (p *Profile) Schema() []lazyorm.Field {
	return []lazyorm.Field{
		{Name: "author_id", Type: lazyorm.TypeInt64, Constraints: lazyorm.ConstraintPK},
		{Name: "bio", Type: lazyorm.TypeText},
	}
}

func (p *Profile) Values() []any   { return []any{p.AuthorID, p.Bio} }
func (p *Profile) Pointers() []any { return []any{&p.AuthorID, &p.Bio} }

const (
	authorsSQL  = "SELECT id, name FROM authors"
	postsSQL    = "SELECT id, author_id, title FROM posts WHERE author_id = ?"
	profilesSQL = "SELECT author_id, bio FROM profiles WHERE author_id = ?"
)

// library is a fixture of two authors: ann (id 1) with two posts and a
// profile, bob (id 2) with one post and no profile.
type library struct {
	cfg     *lazyorm.Configuration
	conn    *MockConn
	authors *lazyorm.Statement
}

func newLibrary() *library {
	posts := [][]any{
		{int64(10), int64(1), "first"},
		{int64(11), int64(1), "second"},
		{int64(20), int64(2), "hello"},
	}
	profiles := [][]any{
		{int64(1), "writes things"},
	}
	byAuthor := func(rows [][]any, col int) func(args []any) *MockRows {
		return func(args []any) *MockRows {
			var out [][]any
			for _, r := range rows {
				if fmt.Sprint(r[col]) == fmt.Sprint(args[0]) {
					out = append(out, r)
				}
			}
			if out == nil {
				out = [][]any{}
			}
			return &MockRows{Data: out}
		}
	}

	conn := &MockConn{Results: map[string]func(args []any) *MockRows{
		authorsSQL: func([]any) *MockRows {
			return &MockRows{Data: [][]any{{int64(1), "ann"}, {int64(2), "bob"}}}
		},
		postsSQL:    byAuthor(posts, 1),
		profilesSQL: byAuthor(profiles, 0),
	}}

	cfg := lazyorm.NewConfiguration()
	cfg.ExecutorFactory = func() (*lazyorm.QueryExecutor, error) {
		return lazyorm.NewQueryExecutor(cfg, conn), nil
	}
	mustAdd(cfg, postsStatement())
	mustAdd(cfg, profilesStatement())

	return &library{
		cfg:  cfg,
		conn: conn,
		authors: &lazyorm.Statement{
			ID:     "authors.all",
			Source: lazyorm.StaticSQL{Mode: lazyorm.ActionReadAll, SQL: authorsSQL},
			Result: &lazyorm.ResultMap{
				ID:           "authors",
				New:          func() lazyorm.Model { return &Author{} },
				Associations: (&Author{}).Associations(),
			},
		},
	}
}

func postsStatement() *lazyorm.Statement {
	return &lazyorm.Statement{
		ID:     "posts.byAuthorID",
		Source: lazyorm.StaticSQL{Mode: lazyorm.ActionReadAll, SQL: postsSQL, Params: []string{""}},
		Result: &lazyorm.ResultMap{ID: "posts", New: func() lazyorm.Model { return &Post{} }},
	}
}

func profilesStatement() *lazyorm.Statement {
	return &lazyorm.Statement{
		ID:     "profiles.byAuthorID",
		Source: lazyorm.StaticSQL{Mode: lazyorm.ActionReadOne, SQL: profilesSQL, Params: []string{""}},
		Result: &lazyorm.ResultMap{ID: "profiles", New: func() lazyorm.Model { return &Profile{} }},
	}
}

func mustAdd(cfg *lazyorm.Configuration, stmt *lazyorm.Statement) {
	if err := cfg.AddStatement(stmt); err != nil {
		panic(err)
	}
}

// readAuthors runs the authors statement and returns its rows as proxies.
func (l *library) readAuthors(ctx context.Context, ex *lazyorm.QueryExecutor) ([]*lazyorm.Proxy, error) {
	list, err := ex.Query(ctx, l.authors, nil, lazyorm.DefaultRowBounds, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*lazyorm.Proxy, 0, len(list))
	for _, m := range list {
		p, ok := m.(*lazyorm.Proxy)
		if !ok {
			return nil, fmt.Errorf("row %T is not a proxy", m)
		}
		out = append(out, p)
	}
	return out, nil
}
