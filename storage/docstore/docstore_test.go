package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/graph"
	"github.com/trezcool/elimu/core/observation"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
	"github.com/trezcool/elimu/storage/kv"
	"github.com/trezcool/elimu/storage/kv/memkv"
)

func newTestStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	kvs := memkv.New()
	return New(kvs), kvs
}

func setRaw(t *testing.T, kvs kv.Store, key, raw string) {
	t.Helper()
	require.NoError(t, kvs.Update(context.Background(), func(txn kv.Txn) error {
		return txn.Set(key, []byte(raw))
	}))
}

func getEnvelope(t *testing.T, kvs kv.Store, key string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, kvs.View(context.Background(), func(r kv.Reader) error {
		raw, err := r.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &env)
	}))
	return env
}

func TestDocumentFormat(t *testing.T) {
	ctx := context.Background()

	t.Run("missing document reads as empty", func(t *testing.T) {
		s, _ := newTestStore(t)
		students, err := NewStudentRepository(s).QueryAllStudents(ctx)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("legacy array is upgraded on write", func(t *testing.T) {
		s, kvs := newTestStore(t)
		setRaw(t, kvs, keyStudents, `[{"id":"STU001","name":"Kevin Mwangi","skills":[]}]`)

		repo := NewStudentRepository(s)
		stu, err := repo.GetStudentByID(ctx, "STU001")
		require.NoError(t, err)
		assert.Equal(t, "Kevin Mwangi", stu.Name)

		stu.Grade = "Grade 7"
		_, err = repo.SaveStudent(ctx, stu)
		require.NoError(t, err)

		env := getEnvelope(t, kvs, keyStudents)
		assert.Equal(t, SchemaVersion, env.SchemaVersion)
		assert.Equal(t, int64(1), env.Revision)
	})

	t.Run("legacy single record", func(t *testing.T) {
		s, kvs := newTestStore(t)
		setRaw(t, kvs, keySessions, `{"id":"session_mock_1","teacher_id":"user-1","status":"Draft"}`)

		sess, err := NewSessionRepository(s).GetSessionByTeacher(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, appraisal.StatusDraft, sess.Status)
	})

	t.Run("newer schema is refused", func(t *testing.T) {
		s, kvs := newTestStore(t)
		setRaw(t, kvs, keyStudents, `{"schema_version":2,"revision":4,"records":[]}`)

		_, err := NewStudentRepository(s).QueryAllStudents(ctx)
		assert.Equal(t, ErrSchemaVersion, errors.Cause(err))
	})

	t.Run("every write bumps the revision", func(t *testing.T) {
		s, kvs := newTestStore(t)
		repo := NewObservationRepository(s)
		for _, id := range []string{"o1", "o2", "o3"} {
			_, err := repo.CreateObservation(ctx, observation.Observation{ID: id})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), getEnvelope(t, kvs, keyObservations).Revision)

		_, err := repo.CreateObservation(ctx, observation.Observation{ID: "o1"})
		assert.True(t, core.IsConflict(err))
		assert.Equal(t, int64(3), getEnvelope(t, kvs, keyObservations).Revision)
	})
}

func TestStore_InTx(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	students := NewStudentRepository(s)
	members := NewStaffRepository(s)

	t.Run("rollback", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := s.InTx(ctx, func(ctx context.Context) error {
			if _, err := students.CreateStudent(ctx, student.Student{ID: "STU001"}); err != nil {
				return err
			}
			if _, err := members.CreateMember(ctx, staff.Member{ID: "user-1"}); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		all, err := students.QueryAllStudents(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		_, err = members.GetMemberByID(ctx, "user-1")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("commit and nesting", func(t *testing.T) {
		err := s.InTx(ctx, func(ctx context.Context) error {
			if _, err := students.CreateStudent(ctx, student.Student{ID: "STU001"}); err != nil {
				return err
			}
			return s.InTx(ctx, func(ctx context.Context) error {
				// reads see the outer transaction's writes
				stu, err := students.GetStudentByID(ctx, "STU001")
				if err != nil {
					return err
				}
				_, err = students.SaveStudent(ctx, stu)
				return err
			})
		})
		require.NoError(t, err)

		stu, err := students.GetStudentByID(ctx, "STU001")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stu.Version)
	})
}

func TestStaffRepository(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	repo := NewStaffRepository(s)

	m := staff.Member{ID: "user-1", Name: "Jane Doe", Email: "jane@school.ac.ke", Role: staff.RoleTeacher}
	require.NoError(t, m.SetPassword("Secr3t!pass"))
	_, err := repo.CreateMember(ctx, m)
	require.NoError(t, err)

	got, err := repo.GetMemberByEmail(ctx, "JANE@school.ac.ke")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.NoError(t, got.CheckPassword("Secr3t!pass"), "password hash must survive a round trip")

	require.NoError(t, repo.DeleteMembersByID(ctx, "user-1", "unknown"))
	_, err = repo.GetMemberByID(ctx, "user-1")
	assert.Equal(t, staff.ErrNotFound, err)
}

func TestGraphRepository(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	store := graph.NewStore(NewGraphRepository(s))

	t.Run("dangling edge", func(t *testing.T) {
		n, err := store.CreateNode(ctx, graph.NodeStudent, graph.Attrs{"name": "Kevin"})
		require.NoError(t, err)

		_, err = store.CreateEdge(ctx, n.ID, "learning_module_0_0", graph.EdgeEnrolledIn, nil)
		assert.True(t, core.IsReference(err))
		_, err = store.CreateEdge(ctx, "student_0_0", n.ID, graph.EdgeEnrolledIn, nil)
		assert.True(t, core.IsReference(err))

		nbrs, err := store.Neighbors(ctx, n.ID, graph.EdgeEnrolledIn)
		require.NoError(t, err)
		assert.Empty(t, nbrs)
	})

	t.Run("chain keeps insertion order", func(t *testing.T) {
		const n = 5
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			node, err := store.CreateNode(ctx, graph.NodeLearningModule, graph.Attrs{"position": i})
			require.NoError(t, err)
			ids = append(ids, node.ID)
			if i > 0 {
				_, err = store.CreateEdge(ctx, ids[i-1], ids[i], graph.EdgeTeaches, nil)
				require.NoError(t, err)
			}
		}

		current := ids[0]
		for i := 1; i < n; i++ {
			nbrs, err := store.Neighbors(ctx, current, graph.EdgeTeaches)
			require.NoError(t, err)
			require.Len(t, nbrs, 1)
			assert.Equal(t, ids[i], nbrs[0].ID)
			assert.Equal(t, i, nbrs[0].Attrs.Int("position"))
			current = nbrs[0].ID
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := store.GetNode(ctx, "nope")
		assert.True(t, core.IsNotFound(err))
	})
}
