// Package seed loads the demo fixtures into an empty document store.
package seed

import (
	"context"
	_ "embed"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

const dateLayout = "2006-01-02"

type (
	memberFixture struct {
		ID              string `yaml:"id"`
		Name            string `yaml:"name"`
		Email           string `yaml:"email"`
		Role            string `yaml:"role"`
		RegistryNumber  string `yaml:"registry_number"`
		Department      string `yaml:"department"`
		LessonsPlanned  int    `yaml:"lessons_planned"`
		LessonsTaught   int    `yaml:"lessons_taught"`
		AppraisalScore  int    `yaml:"appraisal_score"`
		PromotionStatus string `yaml:"promotion_status"`
		Gaps            int    `yaml:"gaps"`
	}

	skillFixture struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Score       int    `yaml:"score"`
		Trend       string `yaml:"trend"`
		LastUpdated string `yaml:"last_updated"`
	}

	activityFixture struct {
		ID                   string   `yaml:"id"`
		LessonID             string   `yaml:"lesson_id"`
		LessonTopic          string   `yaml:"lesson_topic"`
		Date                 string   `yaml:"date"`
		Type                 string   `yaml:"type"`
		Performance          string   `yaml:"performance"`
		SkillsAddressed      []string `yaml:"skills_addressed"`
		DurationMinutes      int      `yaml:"duration_minutes"`
		Score                *int     `yaml:"score"`
		ExperimentsCompleted int      `yaml:"experiments_completed"`
		ToolsUsed            []string `yaml:"tools_used"`
		Attempts             int      `yaml:"attempts"`
	}

	studentFixture struct {
		ID              string            `yaml:"id"`
		Name            string            `yaml:"name"`
		Grade           string            `yaml:"grade"`
		AdmissionNumber string            `yaml:"admission_number"`
		AttendanceRate  int               `yaml:"attendance_rate"`
		Skills          []skillFixture    `yaml:"skills"`
		RecentActivity  []activityFixture `yaml:"recent_activity"`
		LearningGaps    []string          `yaml:"learning_gaps"`
	}

	tpdFixture struct {
		ID                string `yaml:"id"`
		Gap               string `yaml:"gap"`
		RecommendedAction string `yaml:"recommended_action"`
		Status            string `yaml:"status"`
	}

	sessionFixture struct {
		ID                 string       `yaml:"id"`
		TeacherID          string       `yaml:"teacher_id"`
		Term               string       `yaml:"term"`
		Year               int          `yaml:"year"`
		AttendanceScore    int          `yaml:"attendance_score"`
		SupervisorComments string       `yaml:"supervisor_comments"`
		TPDPlan            []tpdFixture `yaml:"tpd_plan"`
	}

	Fixtures struct {
		Password string           `yaml:"password"`
		Staff    []memberFixture  `yaml:"staff"`
		Students []studentFixture `yaml:"students"`
		Sessions []sessionFixture `yaml:"sessions"`
	}
)

type (
	StaffRepository interface {
		CreateMember(ctx context.Context, m staff.Member) (staff.Member, error)
		QueryAllMembers(ctx context.Context) ([]staff.Member, error)
	}

	StudentRepository interface {
		CreateStudent(ctx context.Context, s student.Student) (student.Student, error)
	}

	SessionRepository interface {
		CreateSession(ctx context.Context, s appraisal.Session) (appraisal.Session, error)
	}

	Seeder struct {
		tx       core.Transactor
		staff    StaffRepository
		students StudentRepository
		sessions SessionRepository
		logger   core.Logger
	}
)

// Load parses the embedded fixtures.
func Load() (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return Fixtures{}, errors.Wrap(err, "parsing fixtures")
	}
	return f, nil
}

func NewSeeder(
	tx core.Transactor,
	staffRepo StaffRepository,
	studentRepo StudentRepository,
	sessionRepo SessionRepository,
	logger core.Logger,
) *Seeder {
	return &Seeder{tx: tx, staff: staffRepo, students: studentRepo, sessions: sessionRepo, logger: logger}
}

// Seed writes the fixtures in one transaction. Unless force is set, it does nothing
// when staff accounts already exist; with force, fixtures whose id is taken are skipped.
// It reports whether the fixtures were written.
func (s *Seeder) Seed(ctx context.Context, force bool) (bool, error) {
	f, err := Load()
	if err != nil {
		return false, err
	}

	var seeded bool
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.staff.QueryAllMembers(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 && !force {
			return nil
		}

		skipTaken := func(err error) error {
			if force && core.IsConflict(err) {
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		members := make(map[string]staff.Member, len(f.Staff))
		for _, mf := range f.Staff {
			m, err := mf.member(f.Password, now)
			if err != nil {
				return err
			}
			if _, err = s.staff.CreateMember(ctx, m); skipTaken(err) != nil {
				return errors.WithMessagef(err, "seeding member %s", m.ID)
			}
			members[m.ID] = m
		}
		for _, sf := range f.Students {
			if _, err := s.students.CreateStudent(ctx, sf.student()); skipTaken(err) != nil {
				return errors.WithMessagef(err, "seeding student %s", sf.ID)
			}
		}
		for _, sf := range f.Sessions {
			if _, err := s.sessions.CreateSession(ctx, sf.session(members[sf.TeacherID].Name, now)); skipTaken(err) != nil {
				return errors.WithMessagef(err, "seeding session %s", sf.ID)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info("demo data seeded", map[string]interface{}{
			"staff": len(f.Staff), "students": len(f.Students), "sessions": len(f.Sessions),
		})
	}
	return seeded, nil
}

func (mf memberFixture) member(pwd string, now time.Time) (staff.Member, error) {
	m := staff.Member{
		ID:              mf.ID,
		Name:            mf.Name,
		Email:           mf.Email,
		Role:            staff.Role(mf.Role),
		RegistryNumber:  mf.RegistryNumber,
		Department:      mf.Department,
		IsActive:        true,
		LessonsPlanned:  mf.LessonsPlanned,
		LessonsTaught:   mf.LessonsTaught,
		AppraisalScore:  mf.AppraisalScore,
		PromotionStatus: staff.PromotionStatus(mf.PromotionStatus),
		Gaps:            mf.Gaps,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !m.Role.IsValid() || !m.PromotionStatus.IsValid() {
		return staff.Member{}, errors.Errorf("invalid fixture for member %s", mf.ID)
	}
	if err := m.SetPassword(pwd); err != nil {
		return staff.Member{}, errors.Wrap(err, "hashing password")
	}
	return m, nil
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func (sf studentFixture) student() student.Student {
	st := student.Student{
		ID:              sf.ID,
		Name:            sf.Name,
		Grade:           sf.Grade,
		AdmissionNumber: sf.AdmissionNumber,
		AttendanceRate:  sf.AttendanceRate,
		Skills:          make([]student.SkillMetric, 0, len(sf.Skills)),
		RecentActivity:  make([]student.Activity, 0, len(sf.RecentActivity)),
		LearningGaps:    append([]string{}, sf.LearningGaps...),
	}
	for _, sk := range sf.Skills {
		st.Skills = append(st.Skills, student.SkillMetric{
			ID:          sk.ID,
			Name:        sk.Name,
			Score:       sk.Score,
			Trend:       student.Trend(sk.Trend),
			LastUpdated: parseDate(sk.LastUpdated),
		})
	}
	for _, af := range sf.RecentActivity {
		act := student.Activity{
			ID:              af.ID,
			LessonID:        af.LessonID,
			LessonTopic:     af.LessonTopic,
			Date:            af.Date,
			Type:            student.ActivityType(af.Type),
			Performance:     student.Performance(af.Performance),
			SkillsAddressed: append([]string{}, af.SkillsAddressed...),
			DurationMinutes: af.DurationMinutes,
			Score:           af.Score,
		}
		if af.ExperimentsCompleted > 0 || len(af.ToolsUsed) > 0 || af.Attempts > 0 {
			act.Interaction = &student.InteractionData{
				ExperimentsCompleted: af.ExperimentsCompleted,
				ToolsUsed:            af.ToolsUsed,
				Attempts:             af.Attempts,
			}
		}
		st.RecentActivity = append(st.RecentActivity, act)
	}
	st.RecomputePerformance()
	return st
}

func (sf sessionFixture) session(teacherName string, now time.Time) appraisal.Session {
	sess := appraisal.Session{
		ID:                     sf.ID,
		TeacherID:              sf.TeacherID,
		TeacherName:            teacherName,
		Term:                   sf.Term,
		Year:                   sf.Year,
		Status:                 appraisal.StatusDraft,
		Standards:              appraisal.DefaultStandards(),
		AttendanceScore:        sf.AttendanceScore,
		LearnerProgressRecords: []string{},
		SupervisorComments:     sf.SupervisorComments,
		TPDPlan:                make([]appraisal.TPD, 0, len(sf.TPDPlan)),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	for _, t := range sf.TPDPlan {
		sess.TPDPlan = append(sess.TPDPlan, appraisal.TPD{
			ID:                t.ID,
			Gap:               t.Gap,
			RecommendedAction: t.RecommendedAction,
			Status:            appraisal.TPDStatus(t.Status),
		})
	}
	return sess
}
