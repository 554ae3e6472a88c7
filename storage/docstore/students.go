package docstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/student"
)

var errStudentIDTaken = errors.WithMessage(core.ErrConflict, "student id already exists")

type StudentRepository struct {
	coll collection[student.Student]
}

var _ student.Repository = (*StudentRepository)(nil)

func NewStudentRepository(s *Store) *StudentRepository {
	return &StudentRepository{coll: collection[student.Student]{
		store: s,
		key:   keyStudents,
		id:    func(stu student.Student) string { return stu.ID },
	}}
}

func (repo *StudentRepository) QueryAllStudents(ctx context.Context) ([]student.Student, error) {
	return repo.coll.all(ctx)
}

func (repo *StudentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	return repo.coll.get(ctx, id, student.ErrNotFound)
}

func (repo *StudentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	stu.Version = 1
	return repo.coll.insert(ctx, stu, errStudentIDTaken)
}

func (repo *StudentRepository) SaveStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	return repo.coll.replace(ctx, stu, student.ErrNotFound, func(stored student.Student, stu *student.Student) {
		stu.Version = stored.Version + 1
	})
}

func (repo *StudentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	return repo.coll.remove(ctx, ids...)
}
