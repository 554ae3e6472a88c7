package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/docstore"
	"github.com/trezcool/elimu/storage/kv/memkv"
	"github.com/trezcool/elimu/storage/seed"
)

func TestLoad(t *testing.T) {
	f, err := seed.Load()
	require.NoError(t, err)
	assert.Len(t, f.Staff, 6)
	assert.Len(t, f.Students, 3)
	assert.Len(t, f.Sessions, 1)
	assert.NotEmpty(t, f.Password)
}

func TestSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	store := docstore.New(memkv.New())
	staffRepo := docstore.NewStaffRepository(store)
	studentRepo := docstore.NewStudentRepository(store)
	sessionRepo := docstore.NewSessionRepository(store)
	seeder := seed.NewSeeder(store, staffRepo, studentRepo, sessionRepo, core.NewNopLogger())

	seeded, err := seeder.Seed(ctx, false)
	require.NoError(t, err)
	assert.True(t, seeded)

	members, err := staffRepo.QueryAllMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 6)

	jane, err := staffRepo.GetMemberByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "TSC-10023", jane.RegistryNumber)
	f, _ := seed.Load()
	assert.NoError(t, jane.CheckPassword(f.Password))

	kevin, err := studentRepo.GetStudentByID(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, 76, kevin.OverallPerformance) // mean of 75, 85, 65, 80
	require.Len(t, kevin.RecentActivity, 2)
	require.NotNil(t, kevin.RecentActivity[0].Interaction)
	assert.Equal(t, 2, kevin.RecentActivity[0].Interaction.ExperimentsCompleted)
	require.NotNil(t, kevin.RecentActivity[1].Score)
	assert.Equal(t, 92, *kevin.RecentActivity[1].Score)

	sess, err := sessionRepo.GetSessionByTeacher(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", sess.TeacherName)
	assert.Len(t, sess.Standards, 5)
	assert.Len(t, sess.TPDPlan, 1)

	t.Run("non empty store is left alone", func(t *testing.T) {
		seeded, err := seeder.Seed(ctx, false)
		require.NoError(t, err)
		assert.False(t, seeded)
	})

	t.Run("force skips taken ids", func(t *testing.T) {
		require.NoError(t, staffRepo.DeleteMembersByID(ctx, "user-2"))

		seeded, err := seeder.Seed(ctx, true)
		require.NoError(t, err)
		assert.True(t, seeded)

		members, err := staffRepo.QueryAllMembers(ctx)
		require.NoError(t, err)
		assert.Len(t, members, 6)
	})
}
