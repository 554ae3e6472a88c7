package student

import (
	"context"
	"fmt"
	"math"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrNotFound        = errors.WithMessage(core.ErrNotFound, "student")
	ErrAdmissionExists = errors.New("a student with this admission number already exists")
	ErrVersionConflict = errors.WithMessage(core.ErrConflict, "student was modified")
)

const (
	defaultDuration     = 30 // minutes
	defaultActivityType = ActivityLesson
)

type (
	// Repository persists students. Implementations join the transaction carried by ctx, if any.
	Repository interface {
		QueryAllStudents(ctx context.Context) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// SaveStudent replaces the stored student and bumps its Version.
		SaveStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time // mockable
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryAllStudents(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// RecordProgress averages each reported skill score into the stored one, sets its trend,
// prepends the activity and recomputes the overall performance.
// Reported skills the student does not have are ignored.
func (svc *Service) RecordProgress(ctx context.Context, upd ProgressUpdate) (Student, error) {
	if err := core.TranslateValidationErrors(svc.validate.Struct(upd), svc.translator); err != nil {
		return Student{}, err
	}

	var updated Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		stu, err := svc.repo.GetStudentByID(ctx, upd.StudentID)
		if err != nil {
			return err
		}
		if upd.ExpectedVersion != nil && *upd.ExpectedVersion != stu.Version {
			return ErrVersionConflict
		}

		now := svc.nowFunc().UTC()
		for i, skill := range stu.Skills {
			for _, rep := range upd.Skills {
				if rep.Name != skill.Name {
					continue
				}
				stu.Skills[i].Trend = TrendOf(skill.Score, rep.Score)
				stu.Skills[i].Score = int(math.Round(float64(skill.Score+rep.Score) / 2))
				stu.Skills[i].LastUpdated = now
				break
			}
		}

		stu.RecentActivity = append([]Activity{svc.newActivity(upd, now)}, stu.RecentActivity...)
		stu.RecomputePerformance()

		updated, err = svc.repo.SaveStudent(ctx, stu)
		return err
	})
	return updated, err
}

func (svc *Service) newActivity(upd ProgressUpdate, now time.Time) Activity {
	act := Activity{
		ID:              fmt.Sprintf("act_%d_%s", now.UnixMilli(), uuid.New().String()[:8]),
		LessonID:        upd.LessonID,
		LessonTopic:     upd.LessonTopic,
		Date:            now.Format(dateLayout),
		Type:            upd.Type,
		Performance:     PerformanceMeeting,
		SkillsAddressed: make([]string, 0, len(upd.Skills)),
		DurationMinutes: upd.Duration,
		Score:           upd.Score,
		Interaction:     upd.Interaction,
	}
	if act.Type == "" {
		act.Type = defaultActivityType
	}
	if act.DurationMinutes == 0 {
		act.DurationMinutes = defaultDuration
	}
	for _, sk := range upd.Skills {
		act.SkillsAddressed = append(act.SkillsAddressed, sk.Name)
	}
	return act
}

// Add creates a student with the default skills.
func (svc *Service) Add(ctx context.Context, ns NewStudent) (Student, error) {
	ns.clean()
	if err := core.TranslateValidationErrors(svc.validate.Struct(ns), svc.translator); err != nil {
		return Student{}, err
	}

	var created Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		all, err := svc.repo.QueryAllStudents(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.AdmissionNumber == ns.AdmissionNumber {
				return core.NewValidationError(ErrAdmissionExists, core.FieldError{
					Field: "admission_number",
					Error: ErrAdmissionExists.Error(),
				})
			}
		}

		now := svc.nowFunc().UTC()
		stu := Student{
			ID:              uuid.New().String(),
			Name:            ns.Name,
			Grade:           ns.Grade,
			AdmissionNumber: ns.AdmissionNumber,
			AttendanceRate:  ns.AttendanceRate,
			Skills:          make([]SkillMetric, 0, len(DefaultSkills)),
			RecentActivity:  []Activity{},
			LearningGaps:    []string{},
		}
		for _, sk := range DefaultSkills {
			sk.Score = defaultSkillScore
			sk.Trend = TrendStable
			sk.LastUpdated = now
			stu.Skills = append(stu.Skills, sk)
		}
		stu.RecomputePerformance()

		created, err = svc.repo.CreateStudent(ctx, stu)
		return err
	})
	return created, err
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}

func (svc *Service) TrackProgress(ctx context.Context, id string) (Progress, error) {
	stu, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		StudentID:        stu.ID,
		Name:             stu.Name,
		CompletedLessons: stu.CompletedLessons(),
		OverallProgress:  float64(stu.OverallPerformance) / 100,
	}, nil
}
