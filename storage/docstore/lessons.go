package docstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/lesson"
)

var errLessonIDTaken = errors.WithMessage(core.ErrConflict, "lesson id already exists")

type LessonRepository struct {
	coll collection[lesson.Lesson]
}

var _ lesson.Repository = (*LessonRepository)(nil)

func NewLessonRepository(s *Store) *LessonRepository {
	return &LessonRepository{coll: collection[lesson.Lesson]{
		store: s,
		key:   keyLessons,
		id:    func(l lesson.Lesson) string { return l.ID },
	}}
}

func (repo *LessonRepository) CreateLesson(ctx context.Context, l lesson.Lesson) (lesson.Lesson, error) {
	return repo.coll.insert(ctx, l, errLessonIDTaken)
}

func (repo *LessonRepository) QueryAllLessons(ctx context.Context) ([]lesson.Lesson, error) {
	return repo.coll.all(ctx)
}
