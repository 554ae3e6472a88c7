package student

import (
	"math"
	"time"

	"github.com/trezcool/elimu/core"
)

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// TrendOf compares a newly reported score to the previous one.
func TrendOf(previous, reported int) Trend {
	switch {
	case reported > previous:
		return TrendUp
	case reported < previous:
		return TrendDown
	}
	return TrendStable
}

type ActivityType string

const (
	ActivityLesson  ActivityType = "Lesson"
	ActivityQuiz    ActivityType = "Quiz"
	ActivityLab     ActivityType = "Lab"
	ActivityProject ActivityType = "Project"
)

type Performance string

const (
	PerformanceExceeding   Performance = "Exceeding"
	PerformanceMeeting     Performance = "Meeting"
	PerformanceApproaching Performance = "Approaching"
	PerformanceBelow       Performance = "Below"
)

const dateLayout = "2006-01-02"

// DefaultSkills are given to every new student.
var DefaultSkills = []SkillMetric{
	{ID: "sk1", Name: "Critical Thinking"},
	{ID: "sk2", Name: "Digital Literacy"},
	{ID: "sk3", Name: "Communication"},
	{ID: "sk4", Name: "Collaboration"},
}

const defaultSkillScore = 50

type (
	SkillMetric struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Score       int       `json:"score"` // 0-100
		Trend       Trend     `json:"trend"`
		LastUpdated time.Time `json:"last_updated"`
	}

	InteractionData struct {
		ExperimentsCompleted int      `json:"experiments_completed,omitempty"`
		ToolsUsed            []string `json:"tools_used,omitempty"`
		Attempts             int      `json:"attempts,omitempty"`
	}

	Activity struct {
		ID              string           `json:"id"`
		LessonID        string           `json:"lesson_id"`
		LessonTopic     string           `json:"lesson_topic"`
		Date            string           `json:"date"` // YYYY-MM-DD
		Type            ActivityType     `json:"type"`
		Performance     Performance      `json:"performance"`
		SkillsAddressed []string         `json:"skills_addressed"`
		DurationMinutes int              `json:"duration_minutes,omitempty"`
		Score           *int             `json:"score,omitempty"`
		Interaction     *InteractionData `json:"interaction_data,omitempty"`
	}

	Student struct {
		ID                 string        `json:"id"`
		Name               string        `json:"name"`
		Grade              string        `json:"grade"`
		AdmissionNumber    string        `json:"admission_number"`
		AttendanceRate     int           `json:"attendance_rate"`
		OverallPerformance int           `json:"overall_performance"`
		Skills             []SkillMetric `json:"skills"`
		RecentActivity     []Activity    `json:"recent_activity"` // most recent first
		LearningGaps       []string      `json:"learning_gaps"`
		Version            int64         `json:"version"`
	}
)

// RecomputePerformance sets OverallPerformance to the rounded mean of the skill scores.
func (s *Student) RecomputePerformance() {
	if len(s.Skills) == 0 {
		s.OverallPerformance = 0
		return
	}
	var total int
	for _, sk := range s.Skills {
		total += sk.Score
	}
	s.OverallPerformance = int(math.Round(float64(total) / float64(len(s.Skills))))
}

// CompletedLessons returns the distinct lesson ids found in the activities, most recent first.
func (s Student) CompletedLessons() []string {
	seen := make(map[string]bool, len(s.RecentActivity))
	lessons := make([]string, 0, len(s.RecentActivity))
	for _, act := range s.RecentActivity {
		if act.LessonID == "" || seen[act.LessonID] {
			continue
		}
		seen[act.LessonID] = true
		lessons = append(lessons, act.LessonID)
	}
	return lessons
}

type (
	SkillScore struct {
		Name  string `json:"name" validate:"required"`
		Score int    `json:"score" validate:"min=0,max=100"`
	}

	// ProgressUpdate records a learning activity and the skill scores it produced.
	ProgressUpdate struct {
		StudentID       string           `json:"student_id" validate:"required"`
		LessonID        string           `json:"lesson_id"`
		LessonTopic     string           `json:"lesson_topic"`
		Skills          []SkillScore     `json:"skills" validate:"dive"`
		Type            ActivityType     `json:"type" validate:"omitempty,oneof=Lesson Quiz Lab Project"`
		Duration        int              `json:"duration" validate:"min=0"`
		Score           *int             `json:"score" validate:"omitempty,min=0,max=100"`
		Interaction     *InteractionData `json:"interaction_data"`
		ExpectedVersion *int64           `json:"expected_version"`
	}

	NewStudent struct {
		Name            string `json:"name" validate:"required"`
		Grade           string `json:"grade" validate:"required"`
		AdmissionNumber string `json:"admission_number" validate:"required"`
		AttendanceRate  int    `json:"attendance_rate" validate:"min=0,max=100"`
	}

	// Progress summarises a student's progress.
	Progress struct {
		StudentID        string   `json:"student_id"`
		Name             string   `json:"name"`
		CompletedLessons []string `json:"completed_lessons"`
		OverallProgress  float64  `json:"overall_progress"` // 0-1
	}
)

func (ns *NewStudent) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Grade = core.CleanString(ns.Grade)
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
}
