package lazyorm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tinywasm/lazyorm"
	"golang.org/x/sync/errgroup"
)

func TestProxy_LoadsOnlyTheAccessedProperty(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	if len(authors) != 2 {
		t.Fatalf("Expected 2 authors, got %d", len(authors))
	}
	if n := lib.conn.QueryCount(postsSQL) + lib.conn.QueryCount(profilesSQL); n != 0 {
		t.Fatalf("Expected no nested select before access, got %d", n)
	}

	ann := authors[0]
	if got := ann.Pending(); fmt.Sprint(got) != "[Posts Profile]" {
		t.Errorf("Expected Posts and Profile pending, got %v", got)
	}

	v, err := ann.Get(ctx, "Posts")
	if err != nil {
		t.Fatalf("Get(Posts) failed: %v", err)
	}
	posts := v.([]*Post)
	if len(posts) != 2 || posts[0].Title != "first" || posts[1].Title != "second" {
		t.Errorf("Unexpected posts %+v", posts)
	}
	if n := lib.conn.QueryCount(postsSQL); n != 1 {
		t.Errorf("Expected 1 posts select, got %d", n)
	}
	if n := lib.conn.QueryCount(profilesSQL); n != 0 {
		t.Errorf("Expected the profile to stay deferred, got %d selects", n)
	}
	if got := ann.Pending(); fmt.Sprint(got) != "[Profile]" {
		t.Errorf("Expected only Profile pending, got %v", got)
	}

	// A loaded property is not loaded again.
	if _, err := ann.Get(ctx, "Posts"); err != nil {
		t.Fatal(err)
	}
	if n := lib.conn.QueryCount(postsSQL); n != 1 {
		t.Errorf("Expected posts to be loaded once, got %d selects", n)
	}

	// Plain forwarding calls do not load anything.
	if ann.TableName() != "authors" || len(ann.Values()) != 2 {
		t.Error("Expected TableName and Values to forward to the author")
	}
	if n := lib.conn.QueryCount(profilesSQL); n != 0 {
		t.Errorf("Expected forwarding not to load the profile, got %d selects", n)
	}
}

func TestProxy_KindOne(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}

	v, err := authors[0].Get(ctx, "Profile")
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := v.(*Profile); !ok || p.Bio != "writes things" {
		t.Errorf("Expected ann's profile, got %#v", v)
	}

	v, err = authors[1].Get(ctx, "Profile")
	if err != nil {
		t.Fatal(err)
	}
	if p := v.(*Profile); p != nil {
		t.Errorf("Expected no profile for bob, got %#v", p)
	}
	if len(authors[1].Pending()) != 1 {
		t.Errorf("Expected bob's posts to stay pending, got %v", authors[1].Pending())
	}
}

func TestProxy_SetterCancelsLoad(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	ann := authors[0]

	mine := []*Post{{ID: 99, AuthorID: 1, Title: "mine"}}
	if err := ann.Set(ctx, "Posts", mine); err != nil {
		t.Fatal(err)
	}
	if got := ann.Pending(); fmt.Sprint(got) != "[Profile]" {
		t.Errorf("Expected Posts to leave the pending set, got %v", got)
	}

	v, err := ann.GetProperty("Posts")
	if err != nil {
		t.Fatal(err)
	}
	if posts := v.([]*Post); len(posts) != 1 || posts[0].Title != "mine" {
		t.Errorf("Expected the assigned posts, got %+v", posts)
	}
	if n := lib.conn.QueryCount(postsSQL); n != 0 {
		t.Errorf("Expected the cancelled load never to run, got %d selects", n)
	}
}

func TestProxy_TriggerMethods(t *testing.T) {
	ctx := context.Background()

	t.Run("Equal", func(t *testing.T) {
		lib := newLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}

		if !authors[0].Equal(authors[0]) {
			t.Error("Expected a proxy to equal itself")
		}
		if len(authors[0].Pending()) != 0 {
			t.Errorf("Expected Equal to resolve everything, got %v pending", authors[0].Pending())
		}
		if authors[0].Equal(authors[1]) {
			t.Error("Expected ann and bob to differ")
		}
		if len(authors[1].Pending()) != 0 {
			t.Errorf("Expected Equal to resolve the other side too, got %v pending", authors[1].Pending())
		}
	})

	t.Run("String", func(t *testing.T) {
		lib := newLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}

		if s := authors[0].String(); !strings.Contains(s, "ann") {
			t.Errorf("Expected the author to be formatted, got %q", s)
		}
		if len(authors[0].Pending()) != 0 {
			t.Errorf("Expected String to resolve everything, got %v pending", authors[0].Pending())
		}
	})

	t.Run("Clone", func(t *testing.T) {
		lib := newLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}

		m, err := authors[0].Clone()
		if err != nil {
			t.Fatal(err)
		}
		a := m.(*Author)
		if a == authors[0].Target() {
			t.Error("Expected Clone to return a copy")
		}
		if len(a.Posts) != 2 || a.Profile == nil {
			t.Errorf("Expected a fully loaded copy, got %+v", a)
		}
	})

	t.Run("custom trigger list", func(t *testing.T) {
		lib := newLibrary()
		lib.cfg.LazyLoadTriggerMethods = []string{"Values"}
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}

		_ = authors[0].String()
		if len(authors[0].Pending()) != 2 {
			t.Errorf("Expected String to no longer trigger loads, got %v pending", authors[0].Pending())
		}
		_ = authors[0].Values()
		if len(authors[0].Pending()) != 0 {
			t.Errorf("Expected Values to trigger loads, got %v pending", authors[0].Pending())
		}
	})
}

func TestProxy_Aggressive(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	lib.cfg.AggressiveLazyLoading = true
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	if authors[0].TableName() != "authors" {
		t.Fatal("Expected TableName to forward")
	}
	if len(authors[0].Pending()) != 0 {
		t.Errorf("Expected any call to resolve everything, got %v pending", authors[0].Pending())
	}
	if lib.conn.QueryCount(postsSQL) != 1 || lib.conn.QueryCount(profilesSQL) != 1 {
		t.Error("Expected one select per association")
	}
}

func TestProxy_Finalize(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	lib.cfg.AggressiveLazyLoading = true
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	err = authors[0].Invoke(ctx, lazyorm.FinalizeMethod, func(context.Context, lazyorm.Model) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("Expected Finalize to be forwarded, got %v", err)
	}
	if len(authors[0].Pending()) != 2 {
		t.Errorf("Expected Finalize not to load anything, got %v pending", authors[0].Pending())
	}
}

func TestProxy_ConcurrentAccessLoadsOnce(t *testing.T) {
	lib := newLibrary()
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(context.Background(), false)

	authors, err := lib.readAuthors(context.Background(), ex)
	if err != nil {
		t.Fatal(err)
	}
	ann := authors[0]

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			v, err := ann.Get(ctx, "Posts")
			if err != nil {
				return err
			}
			if n := len(v.([]*Post)); n != 2 {
				return fmt.Errorf("got %d posts", n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := lib.conn.QueryCount(postsSQL); n != 1 {
		t.Errorf("Expected exactly one posts select, got %d", n)
	}
}

func TestProxy_FailedLoadStaysPending(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	boom := errors.New("connection reset")
	lib.conn.QueryErrs = map[string]error{postsSQL: boom}
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	ann := authors[0]

	_, err = ann.Get(ctx, "Posts")
	if !errors.Is(err, lazyorm.ErrExecution) || !errors.Is(err, boom) {
		t.Fatalf("Expected the connection failure as ErrExecution, got %v", err)
	}
	if !strings.Contains(fmt.Sprint(ann.Pending()), "Posts") {
		t.Errorf("Expected Posts to stay pending, got %v", ann.Pending())
	}

	lib.conn.QueryErrs = nil
	v, err := ann.Get(ctx, "Posts")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(v.([]*Post)) != 2 {
		t.Errorf("Expected 2 posts on retry, got %v", v)
	}
}

func TestProxy_LoadAfterExecutorClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("factory", func(t *testing.T) {
		lib := newLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}
		if err := ex.Close(ctx, false); err != nil {
			t.Fatal(err)
		}

		v, err := authors[0].Get(ctx, "Posts")
		if err != nil {
			t.Fatalf("Expected the load to run on a fresh executor, got %v", err)
		}
		if len(v.([]*Post)) != 2 {
			t.Errorf("Expected 2 posts, got %v", v)
		}
	})

	t.Run("no factory", func(t *testing.T) {
		lib := newLibrary()
		lib.cfg.ExecutorFactory = nil
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}
		ex.Close(ctx, false)

		if _, err := authors[0].Get(ctx, "Posts"); !errors.Is(err, lazyorm.ErrNoLoaderExecutor) {
			t.Errorf("Expected ErrNoLoaderExecutor, got %v", err)
		}
		if len(authors[0].Pending()) != 2 {
			t.Errorf("Expected nothing to be resolved, got %v pending", authors[0].Pending())
		}
	})
}

func TestProxy_Serialization(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary()
	ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
	defer ex.Close(ctx, false)

	authors, err := lib.readAuthors(ctx, ex)
	if err != nil {
		t.Fatal(err)
	}
	ann := authors[0]
	if _, err := ann.Get(ctx, "Profile"); err != nil {
		t.Fatal(err)
	}

	t.Run("WriteReplace keeps pending loads", func(t *testing.T) {
		v, err := ann.WriteReplace()
		if err != nil {
			t.Fatal(err)
		}
		state, ok := v.(*lazyorm.SerialState)
		if !ok {
			t.Fatalf("Expected *SerialState, got %T", v)
		}
		if _, ok := state.Unloaded["Posts"]; !ok || len(state.Unloaded) != 1 {
			t.Errorf("Expected only Posts unloaded, got %v", state.Unloaded)
		}
		if state.Object.(*Author) == ann.Target() {
			t.Error("Expected WriteReplace to copy the author")
		}
		if lib.conn.QueryCount(postsSQL) != 0 {
			t.Error("Expected WriteReplace not to load anything")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(ann)
		if err != nil {
			t.Fatal(err)
		}
		restored, err := lazyorm.Restore(data, &Author{}, lib.cfg)
		if err != nil {
			t.Fatal(err)
		}
		p, ok := restored.(*lazyorm.Proxy)
		if !ok {
			t.Fatalf("Expected a proxy back, got %T", restored)
		}
		if got := p.Pending(); fmt.Sprint(got) != "[Posts]" {
			t.Errorf("Expected Posts pending after restore, got %v", got)
		}
		a := p.Target().(*Author)
		if a.Name != "ann" || a.Profile == nil || a.Profile.Bio != "writes things" {
			t.Errorf("Expected loaded state to survive, got %+v", a)
		}

		v, err := p.Get(ctx, "Posts")
		if err != nil {
			t.Fatalf("Expected the restored load to run, got %v", err)
		}
		if len(v.([]*Post)) != 2 {
			t.Errorf("Expected 2 posts, got %v", v)
		}
	})

	t.Run("fully loaded proxy writes the plain model", func(t *testing.T) {
		if _, err := ann.Get(ctx, "Posts"); err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(ann)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "unloaded") {
			t.Errorf("Expected a plain payload, got %s", data)
		}
		restored, err := lazyorm.Restore(data, &Author{}, lib.cfg)
		if err != nil {
			t.Fatal(err)
		}
		a, ok := restored.(*Author)
		if !ok || len(a.Posts) != 2 {
			t.Errorf("Expected a plain author with posts, got %#v", restored)
		}
	})
}

func TestProxy_NoPropertyAccessor(t *testing.T) {
	loader := lazyorm.NewResultLoaderMap(nil, nil)
	p := lazyorm.NewProxy(&Item{ID: 1}, loader, nil)
	if _, err := p.Get(context.Background(), "Anything"); !errors.Is(err, lazyorm.ErrNoPropertyAccessor) {
		t.Errorf("Expected ErrNoPropertyAccessor, got %v", err)
	}
}

// lowerAuthor names its association in lower case.
type lowerAuthor struct{ Author }

func (a *lowerAuthor) GetProperty(name string) (any, error) {
	return a.Author.GetProperty(strings.ToUpper(name[:1]) + name[1:])
}

func (a *lowerAuthor) SetProperty(name string, value any) error {
	return a.Author.SetProperty(strings.ToUpper(name[:1])+name[1:], value)
}

func lowerLibrary() *library {
	lib := newLibrary()
	lib.authors.Result = &lazyorm.ResultMap{
		ID:  "authors",
		New: func() lazyorm.Model { return &lowerAuthor{} },
		Associations: []lazyorm.Association{
			{Property: "posts", Select: "posts.byAuthorID", Kind: lazyorm.KindMany},
		},
	}
	return lib
}

func TestProxy_LowerCaseProperty(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Loads", func(t *testing.T) {
		lib := lowerLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)

		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}
		v, err := authors[0].Get(ctx, "posts")
		if err != nil {
			t.Fatal(err)
		}
		if posts := v.([]*Post); len(posts) != 2 {
			t.Errorf("Expected 2 posts, got %+v", posts)
		}
		if n := lib.conn.QueryCount(postsSQL); n != 1 {
			t.Errorf("Expected 1 posts select, got %d", n)
		}
		if got := authors[0].Pending(); len(got) != 0 {
			t.Errorf("Expected nothing pending, got %v", got)
		}
	})

	t.Run("Set Cancels", func(t *testing.T) {
		lib := lowerLibrary()
		ex := lazyorm.NewQueryExecutor(lib.cfg, lib.conn)
		defer ex.Close(ctx, false)

		authors, err := lib.readAuthors(ctx, ex)
		if err != nil {
			t.Fatal(err)
		}
		ann := authors[0]
		mine := []*Post{{ID: 99, AuthorID: 1, Title: "mine"}}
		if err := ann.Set(ctx, "posts", mine); err != nil {
			t.Fatal(err)
		}
		if got := ann.Pending(); len(got) != 0 {
			t.Errorf("Expected the load to be dropped, got %v", got)
		}

		_ = ann.String()
		v, err := ann.Get(ctx, "posts")
		if err != nil {
			t.Fatal(err)
		}
		if posts := v.([]*Post); len(posts) != 1 || posts[0].Title != "mine" {
			t.Errorf("Expected the assigned posts to survive a trigger method, got %+v", posts)
		}
		if n := lib.conn.QueryCount(postsSQL); n != 0 {
			t.Errorf("Expected no posts select, got %d", n)
		}
	})
}

// note keeps part of its state unexported.
type note struct {
	ID     int64
	secret string
}

func (n *note) TableName() string { return "notes" }

func (n *note) Schema() []lazyorm.Field {
	return []lazyorm.Field{{Name: "id", Type: lazyorm.TypeInt64}}
}

func (n *note) Values() []any   { return []any{n.ID} }
func (n *note) Pointers() []any { return []any{&n.ID} }

func TestProxy_UnexportedFields(t *testing.T) {
	wrap := func(n *note) *lazyorm.Proxy {
		return lazyorm.NewProxy(n, lazyorm.NewResultLoaderMap(nil, nil), nil)
	}

	a := wrap(&note{ID: 1, secret: "x"})
	if !a.Equal(&note{ID: 1, secret: "x"}) {
		t.Error("Expected notes with the same fields to be equal")
	}
	if a.Equal(&note{ID: 1, secret: "y"}) {
		t.Error("Expected notes differing in an unexported field to differ")
	}
	if a.Equal(nil) {
		t.Error("Expected a note not to equal nil")
	}

	cp, err := a.Clone()
	if err != nil {
		t.Fatal(err)
	}
	if n := cp.(*note); n == a.Target() || n.secret != "x" {
		t.Errorf("Expected a distinct copy with the unexported field, got %+v", n)
	}
}
