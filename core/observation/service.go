package observation

import (
	"context"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
)

type Type string

const (
	TypeRegularWalkthrough Type = "Regular Walkthrough"
	TypeFullLesson         Type = "Full Lesson Observation"
	TypeCBEResourceReview  Type = "CBE Resource Review"
)

var (
	// errors
	ErrNotObserver = errors.WithMessage(core.ErrUnauthorized, "only supervisors and admins can record observations")
	ErrNotAllowed  = errors.WithMessage(core.ErrUnauthorized, "not allowed to view these observations")
	errInvalidType = errors.New("invalid observation type")
	errNotATeacher = errors.New("observations can only be recorded for teachers")
)

// observerRoles may record and list every observation.
var observerRoles = []staff.Role{staff.RoleSupervisor, staff.RoleAdmin}

func (t Type) IsValid() bool {
	switch t {
	case TypeRegularWalkthrough, TypeFullLesson, TypeCBEResourceReview:
		return true
	}
	return false
}

type (
	// Observation is a classroom observation recorded by a supervisor.
	Observation struct {
		ID           string    `json:"id"`
		TeacherID    string    `json:"teacher_id"`
		TeacherName  string    `json:"teacher_name"`
		ObserverID   string    `json:"observer_id"`
		ObserverName string    `json:"observer_name"`
		Type         Type      `json:"type"`
		Notes        string    `json:"notes"`
		Date         time.Time `json:"date"` // UTC
	}

	NewObservation struct {
		TeacherID string `json:"teacher_id" validate:"required"`
		Type      Type   `json:"type" validate:"required"`
		Notes     string `json:"notes" validate:"required"`
	}

	// Repository persists observations. Implementations join the transaction carried by ctx, if any.
	Repository interface {
		CreateObservation(ctx context.Context, o Observation) (Observation, error)
		QueryAllObservations(ctx context.Context) ([]Observation, error)
	}

	// StaffDirectory is the part of the staff service observations need.
	StaffDirectory interface {
		GetByID(ctx context.Context, id string) (staff.Member, error)
		IncrementObservations(ctx context.Context, id string) (staff.Member, error)
	}

	Service struct {
		repo       Repository
		staff      StaffDirectory
		tx         core.Transactor
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time // mockable
	}
)

func NewService(
	repo Repository,
	staffDir StaffDirectory,
	tx core.Transactor,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		repo:       repo,
		staff:      staffDir,
		tx:         tx,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

// Record stores an observation and increments the teacher's observation counter, atomically.
func (svc *Service) Record(ctx context.Context, actor staff.Member, no NewObservation) (Observation, error) {
	if !actor.HasRole(observerRoles...) {
		return Observation{}, ErrNotObserver
	}
	no.Notes = core.CleanString(no.Notes)
	if err := core.TranslateValidationErrors(svc.validate.Struct(no), svc.translator); err != nil {
		return Observation{}, err
	}
	if !no.Type.IsValid() {
		return Observation{}, core.NewValidationError(errInvalidType, core.FieldError{Field: "type", Error: errInvalidType.Error()})
	}

	var created Observation
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		teacher, err := svc.staff.GetByID(ctx, no.TeacherID)
		if err != nil {
			return err
		}
		if !teacher.IsTeacher() {
			return core.NewValidationError(errNotATeacher, core.FieldError{Field: "teacher_id", Error: errNotATeacher.Error()})
		}
		created, err = svc.repo.CreateObservation(ctx, Observation{
			ID:           uuid.New().String(),
			TeacherID:    teacher.ID,
			TeacherName:  teacher.Name,
			ObserverID:   actor.ID,
			ObserverName: actor.Name,
			Type:         no.Type,
			Notes:        no.Notes,
			Date:         svc.nowFunc().UTC(),
		})
		if err != nil {
			return err
		}
		_, err = svc.staff.IncrementObservations(ctx, teacher.ID)
		return err
	})
	return created, err
}

// List returns the observations of teacherID (all of them if empty), most recent first.
// Teachers can only list their own.
func (svc *Service) List(ctx context.Context, actor staff.Member, teacherID string) ([]Observation, error) {
	if !actor.HasRole(observerRoles...) {
		if teacherID != actor.ID {
			return nil, ErrNotAllowed
		}
	}

	all, err := svc.repo.QueryAllObservations(ctx)
	if err != nil {
		return nil, err
	}
	obs := make([]Observation, 0, len(all))
	for _, o := range all {
		if teacherID == "" || o.TeacherID == teacherID {
			obs = append(obs, o)
		}
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.After(obs[j].Date) })
	return obs, nil
}
