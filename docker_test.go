package fixtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocker(t *testing.T) {
	ctx := context.Background()
	f := NewDocker(DockerNamePrefix("fixtest"))
	require.NoError(t, f.SetUp(ctx))

	name := generateString()
	resource, err := f.GetPool().RunWithOptions(&dockertest.RunOptions{Name: name, Repository: "crccheck/hello-world", Tag: "latest", Env: nil})
	require.NoError(t, err)

	assert.Equal(t, name, GetHostName(resource))
	assert.Equal(t, fmt.Sprintf("/%v", name), resource.Container.Name)

	// Background purge drains before the network comes down.
	f.Purge(resource)
	assert.NoError(t, f.TearDown(ctx))
}

func TestDockerFixtureFactory(t *testing.T) {
	ctx := context.Background()
	value, teardown, err := DockerFixture(DockerNamePrefix("fixtest"))(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, teardown)
	defer teardown(ctx)

	d, ok := value.(*Docker)
	require.True(t, ok)
	assert.NotNil(t, d.GetPool())
	assert.NotNil(t, d.GetNetwork())
}
