package docstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
)

var errSessionExists = errors.WithMessage(core.ErrConflict, "teacher already has an appraisal session")

// SessionRepository keys sessions by teacher id: a teacher has at most one session.
type SessionRepository struct {
	coll collection[appraisal.Session]
}

var _ appraisal.Repository = (*SessionRepository)(nil)

func NewSessionRepository(s *Store) *SessionRepository {
	return &SessionRepository{coll: collection[appraisal.Session]{
		store: s,
		key:   keySessions,
		id:    func(sess appraisal.Session) string { return sess.TeacherID },
	}}
}

func (repo *SessionRepository) GetSessionByTeacher(ctx context.Context, teacherID string) (appraisal.Session, error) {
	return repo.coll.get(ctx, teacherID, appraisal.ErrSessionNotFound)
}

func (repo *SessionRepository) CreateSession(ctx context.Context, sess appraisal.Session) (appraisal.Session, error) {
	sess.Version = 1
	return repo.coll.insert(ctx, sess, errSessionExists)
}

func (repo *SessionRepository) SaveSession(ctx context.Context, sess appraisal.Session) (appraisal.Session, error) {
	return repo.coll.replace(ctx, sess, appraisal.ErrSessionNotFound, func(stored appraisal.Session, sess *appraisal.Session) {
		sess.Version = stored.Version + 1
	})
}

func (repo *SessionRepository) QuerySessions(ctx context.Context) ([]appraisal.Session, error) {
	return repo.coll.all(ctx)
}
