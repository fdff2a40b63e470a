package fixtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type recorder struct {
	events []string
}

func (r *recorder) note(event string) {
	r.events = append(r.events, event)
}

func notedFixture(rec *recorder, name string, v any) Factory {
	return func(ctx context.Context, _ Values) (any, Teardown, error) {
		rec.note("setup " + name)
		return v, func(context.Context) error {
			rec.note("teardown " + name)
			return nil
		}, nil
	}
}

func newTestManager(t *testing.T) (*Registry, *Manager) {
	t.Helper()
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	return r, NewManager(r, ManagerLogger(zap.NewNop()))
}

func TestResolveCachesPerScopeInstance(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	def, err := r.Register("db", notedFixture(rec, "db", 42), FixtureScope(ScopeModule))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	require.NoError(t, m.Open(ScopeModule, "a_test.go"))

	// Two function scopes inside one module share the instance.
	require.NoError(t, m.Open(ScopeFunction, "one"))
	i1, err := m.Resolve(ctx, def)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, ScopeFunction))

	require.NoError(t, m.Open(ScopeFunction, "two"))
	i2, err := m.Resolve(ctx, def)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, ScopeFunction))

	assert.Same(t, i1, i2)
	assert.Equal(t, 42, i1.Value())
	assert.Equal(t, []string{"setup db"}, rec.events)

	require.NoError(t, m.Close(ctx, ScopeSession))
	assert.Equal(t, []string{"setup db", "teardown db"}, rec.events)
}

func TestTeardownReverseOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	a, err := r.Register("a", notedFixture(rec, "a", 1))
	require.NoError(t, err)
	b, err := r.Register("b", notedFixture(rec, "b", 2))
	require.NoError(t, err)
	c, err := r.Register("c", notedFixture(rec, "c", 3))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	require.NoError(t, m.Open(ScopeFunction, "test"))
	for _, def := range []*Definition{a, b, c} {
		_, err := m.Resolve(ctx, def)
		require.NoError(t, err)
	}
	require.NoError(t, m.Close(ctx, ScopeFunction))

	assert.Equal(t, []string{"setup a", "setup b", "setup c", "teardown c", "teardown b", "teardown a"}, rec.events)
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	def, err := r.Register("f", notedFixture(rec, "f", 1))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	_, err = m.Resolve(ctx, def)
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, ScopeSession))
	require.NoError(t, m.Close(ctx, ScopeSession))
	assert.Equal(t, []string{"setup f", "teardown f"}, rec.events)
}

func TestDependenciesResolveFirst(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	_, err := r.Register("conn", notedFixture(rec, "conn", "c"))
	require.NoError(t, err)
	db, err := r.Register("db", func(ctx context.Context, deps Values) (any, Teardown, error) {
		rec.note("setup db")
		require.Equal(t, "c", deps["conn"])
		return "d", func(context.Context) error {
			rec.note("teardown db")
			return nil
		}, nil
	}, FixtureUses("conn"))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	_, err = m.Resolve(ctx, db)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, ScopeSession))

	// The dependency sets up first and tears down last.
	assert.Equal(t, []string{"setup conn", "setup db", "teardown db", "teardown conn"}, rec.events)
}

func TestScopeMismatch(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	_, err := r.Register("narrow", notedFixture(rec, "narrow", 1), FixtureScope(ScopeFunction))
	require.NoError(t, err)
	broad, err := r.Register("broad", notedFixture(rec, "broad", 2), FixtureScope(ScopeModule), FixtureUses("narrow"))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	require.NoError(t, m.Open(ScopeModule, "a_test.go"))
	_, err = m.Resolve(ctx, broad)
	var mismatch *ScopeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "broad", mismatch.Fixture)
	assert.Equal(t, "narrow", mismatch.Uses)

	// Validation happens before any setup runs.
	assert.Empty(t, rec.events)
}

func TestDependencyCycle(t *testing.T) {
	ctx := context.Background()
	r, m := newTestManager(t)
	_, err := r.Register("a", valueFixture(1), FixtureUses("b"))
	require.NoError(t, err)
	b, err := r.Register("b", valueFixture(2), FixtureUses("a"))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	_, err = m.Resolve(ctx, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestTeardownErrorsCollected(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	r, m := newTestManager(t)
	failing := func(name string) Factory {
		return func(ctx context.Context, _ Values) (any, Teardown, error) {
			return nil, func(context.Context) error {
				rec.note("teardown " + name)
				return errors.New(name + " teardown failed")
			}, nil
		}
	}
	a, err := r.Register("a", failing("a"))
	require.NoError(t, err)
	b, err := r.Register("b", failing("b"))
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	_, err = m.Resolve(ctx, a)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, b)
	require.NoError(t, err)

	err = m.Close(ctx, ScopeSession)
	var td *TeardownError
	require.ErrorAs(t, err, &td)

	// Both failures surface; neither masks the other, and both teardowns ran.
	assert.Len(t, multierr.Errors(td.Err), 2)
	assert.Equal(t, []string{"teardown b", "teardown a"}, rec.events)
}

func TestSetupFailure(t *testing.T) {
	ctx := context.Background()
	r, m := newTestManager(t)
	def, err := r.Register("boom", func(ctx context.Context, _ Values) (any, Teardown, error) {
		return nil, nil, errors.New("no dice")
	})
	require.NoError(t, err)

	require.NoError(t, m.Open(ScopeSession, "session"))
	_, err = m.Resolve(ctx, def)
	require.Error(t, err)

	// A failed setup leaves nothing behind to tear down.
	require.NoError(t, m.Close(ctx, ScopeSession))
}

func TestScopeNesting(t *testing.T) {
	_, m := newTestManager(t)
	require.NoError(t, m.Open(ScopeSession, "session"))
	require.NoError(t, m.Open(ScopeModule, "a_test.go"))
	assert.Error(t, m.Open(ScopeSession, "again"))
	assert.Error(t, m.Open(ScopeModule, "b_test.go"))

	key, ok := m.Current(ScopeModule)
	require.True(t, ok)
	assert.Equal(t, "a_test.go", key)
	_, ok = m.Current(ScopeFunction)
	assert.False(t, ok)
}
