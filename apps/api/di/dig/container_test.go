package dig_container_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dig_container "github.com/trezcool/elimu/apps/api/di/dig"
	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/walker"
	"github.com/trezcool/elimu/storage/seed"
)

func TestContainer(t *testing.T) {
	c := dig_container.New(core.NewTestConfig)

	err := c.Invoke(func(svc walker.Services, seeder *seed.Seeder, server *echoapi.Server) {
		require.NotNil(t, server)

		seeded, err := seeder.Seed(context.Background(), false)
		require.NoError(t, err)
		assert.True(t, seeded)

		members, err := svc.Staff.QueryAll(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, members)
	})
	require.NoError(t, err)
}
