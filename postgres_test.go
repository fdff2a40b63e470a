package fixtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	_, err := reg.Register("docker", DockerFixture(DockerNamePrefix("fixtest")), FixtureScope(ScopeSession))
	require.NoError(t, err)
	_, err = reg.Register("db", PostgresFixture("docker"), FixtureScope(ScopeSession), FixtureUses("docker"))
	require.NoError(t, err)

	r := NewRunner(reg)
	sum, err := r.RunAll(ctx,
		&Test{
			Name:     "create_table",
			Path:     "postgres_test.go",
			Fixtures: []string{"db"},
			Func: func(ctx context.Context, fx Values) error {
				pg := fx["db"].(*Postgres)
				db, err := pg.GetConnection(ctx, "")
				if err != nil {
					return err
				}
				defer db.Close(ctx)
				_, err = db.Exec(ctx, "CREATE TABLE example (id serial PRIMARY KEY, name text)")
				return err
			},
		},
		&Test{
			Name:     "table_exists",
			Path:     "postgres_test.go",
			Fixtures: []string{"db"},
			Func: func(ctx context.Context, fx Values) error {
				pg := fx["db"].(*Postgres)
				exists, err := pg.TableExists(ctx, "", "public", "example")
				if err != nil {
					return err
				}
				if !exists {
					return assert.AnError
				}
				cols, err := pg.GetTableColumns(ctx, "", "public", "example")
				if err != nil {
					return err
				}
				assert.Len(t, cols, 2)
				return nil
			},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Passed)
}
