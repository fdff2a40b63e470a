package fixtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func valueFixture(v any) Factory {
	return func(ctx context.Context, _ Values) (any, Teardown, error) {
		return v, nil, nil
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	d, err := r.Register("my_fixture", valueFixture(42))
	require.NoError(t, err)
	assert.Equal(t, "my_fixture", d.Name())
	assert.Equal(t, ScopeFunction, d.Scope())
	assert.Equal(t, "", d.Dir())
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	_, err := r.Register("", valueFixture(1))
	assert.Error(t, err)
	_, err = r.Register("foo", nil)
	assert.Error(t, err)
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	_, err := r.Register("db", valueFixture(1), FixtureDir("api"))
	require.NoError(t, err)

	// Same subtree.
	_, err = r.Register("db", valueFixture(2), FixtureDir("api/v1"))
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "db", dup.Name)

	// Root overlaps everything.
	_, err = r.Register("db", valueFixture(3))
	assert.ErrorAs(t, err, &dup)

	// Sibling directories don't overlap.
	_, err = r.Register("db", valueFixture(4), FixtureDir("web"))
	assert.NoError(t, err)
}

func TestLookupWalksUpward(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	api, err := r.Register("db", valueFixture("api"), FixtureDir("api"))
	require.NoError(t, err)
	web, err := r.Register("db", valueFixture("web"), FixtureDir("web"))
	require.NoError(t, err)

	d, err := r.Lookup("db", "api/v1/users")
	require.NoError(t, err)
	assert.Same(t, api, d)

	d, err = r.Lookup("db", "web")
	require.NoError(t, err)
	assert.Same(t, web, d)

	_, err = r.Lookup("db", "other")
	var unknown *UnknownFixtureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "db", unknown.Name)
}

func TestFileRegistration(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	f := r.File("api")
	assert.Equal(t, "api", f.Dir())

	d, err := f.Register("token", valueFixture("t"))
	require.NoError(t, err)
	assert.Equal(t, "api", d.Dir())

	_, err = r.Lookup("token", "api/v1")
	assert.NoError(t, err)
	_, err = r.Lookup("token", "web")
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	r := NewRegistry(RegistryLogger(zap.NewNop()))
	_, err := r.Register("DbConn", valueFixture(1))
	require.NoError(t, err)

	// Stylistic variants refer to the same fixture.
	_, err = r.Register("db_conn", valueFixture(2))
	assert.Error(t, err)

	d, err := r.Lookup("dbConn", "")
	require.NoError(t, err)
	assert.Equal(t, "db_conn", d.Name())
}
