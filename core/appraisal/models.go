package appraisal

import (
	"math"
	"time"
)

type Status string

// Session states. Completed is reserved: no operation reaches it yet.
const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusReviewed  Status = "Reviewed"
	StatusCompleted Status = "Completed"
)

type TPDStatus string

const (
	TPDPending    TPDStatus = "Pending"
	TPDInProgress TPDStatus = "In Progress"
	TPDCompleted  TPDStatus = "Completed"
)

func (s TPDStatus) IsValid() bool {
	switch s {
	case TPDPending, TPDInProgress, TPDCompleted:
		return true
	}
	return false
}

// autoTPDAction is the recommended action of interventions raised by low self-ratings.
const autoTPDAction = "Peer Mentorship & Coaching"

// MaxRating is the highest rating a standard can get. 0 means unset.
const MaxRating = 5

type (
	// Standard is one rubric item rated by the teacher and then by a supervisor.
	Standard struct {
		ID               int      `json:"id"`
		Name             string   `json:"name"`
		Description      string   `json:"description"`
		SelfRating       int      `json:"self_rating"`       // 0-5, 0 = unset
		SupervisorRating int      `json:"supervisor_rating"` // 0-5, 0 = unset
		Evidence         []string `json:"evidence"`
		GapsIdentified   string   `json:"gaps_identified"`
	}

	// TPD is a Teacher Professional Development intervention.
	TPD struct {
		ID                string    `json:"id"`
		Gap               string    `json:"gap"`
		RecommendedAction string    `json:"recommended_action"`
		Status            TPDStatus `json:"status"`
	}

	Deliverables struct {
		LessonsPlanned int     `json:"lessons_planned"`
		LessonsTaught  int     `json:"lessons_taught"`
		AverageMastery float64 `json:"average_mastery"`
	}

	Session struct {
		ID                     string        `json:"id"`
		TeacherID              string        `json:"teacher_id"`
		TeacherName            string        `json:"teacher_name"`
		Term                   string        `json:"term"`
		Year                   int           `json:"year"`
		Status                 Status        `json:"status"`
		Standards              []Standard    `json:"standards"`
		AttendanceScore        int           `json:"attendance_score"`
		LearnerProgressRecords []string      `json:"learner_progress_records"`
		SupervisorComments     string        `json:"supervisor_comments"`
		TPDPlan                []TPD         `json:"tpd_plan"`
		Deliverables           *Deliverables `json:"deliverables,omitempty"`
		Version                int64         `json:"version"`
		CreatedAt              time.Time     `json:"created_at"`
		UpdatedAt              time.Time     `json:"updated_at"`
	}
)

// DefaultStandards returns the five rubric items every session starts with, all unrated.
func DefaultStandards() []Standard {
	return []Standard{
		{ID: 1, Name: "Professional Knowledge", Description: "Demonstrates mastery of subject content.", Evidence: []string{}},
		{ID: 2, Name: "Lesson Planning", Description: "Prepares comprehensive lesson plans.", Evidence: []string{}},
		{ID: 3, Name: "Assessment", Description: "Uses valid assessment methods.", Evidence: []string{}},
		{ID: 4, Name: "Professionalism", Description: "Upholds ethical standards.", Evidence: []string{}},
		{ID: 5, Name: "Time Management", Description: "Manages class time effectively.", Evidence: []string{}},
	}
}

func (s *Session) standard(id int) (*Standard, bool) {
	for i := range s.Standards {
		if s.Standards[i].ID == id {
			return &s.Standards[i], true
		}
	}
	return nil, false
}

func (s *Session) hasTPDForGap(gap string) bool {
	for _, t := range s.TPDPlan {
		if t.Gap == gap {
			return true
		}
	}
	return false
}

// OpenTPDs counts the interventions that are not completed.
func (s Session) OpenTPDs() int {
	var n int
	for _, t := range s.TPDPlan {
		if t.Status != TPDCompleted {
			n++
		}
	}
	return n
}

// Score returns round(mean(rating) / 5 * 100) where each standard's rating is the
// supervisor rating if set, else the self rating.
// An unset rating (0) counts as 0: untouched standards pull the score down.
func Score(standards []Standard) int {
	if len(standards) == 0 {
		return 0
	}
	var total int
	for _, st := range standards {
		r := st.SelfRating
		if st.SupervisorRating != 0 {
			r = st.SupervisorRating
		}
		total += r
	}
	mean := float64(total) / float64(len(standards))
	return int(math.Round(mean / MaxRating * 100))
}

// CurrentTerm returns the school term t falls in: Term 1 (Jan-Apr), Term 2 (May-Aug) or Term 3.
func CurrentTerm(t time.Time) (string, int) {
	switch {
	case t.Month() <= time.April:
		return "Term 1", t.Year()
	case t.Month() <= time.August:
		return "Term 2", t.Year()
	}
	return "Term 3", t.Year()
}

type (
	InitRequest struct {
		TeacherID string `json:"teacher_id"` // defaults to the acting member
		Term      string `json:"term"`
		Year      int    `json:"year" validate:"omitempty,min=2000,max=2100"`
	}

	UpdateStandardRequest struct {
		StandardID      int      `json:"standard_id" validate:"required"`
		Rating          int      `json:"rating" validate:"rating"`
		Evidence        []string `json:"evidence"`
		Gaps            string   `json:"gaps"`
		ExpectedVersion *int64   `json:"expected_version"`
	}

	SubmitRequest struct {
		ExpectedVersion *int64 `json:"expected_version"`
	}

	Review struct {
		StandardID int `json:"standard_id" validate:"required"`
		Rating     int `json:"rating" validate:"rating"`
	}

	ReviewRequest struct {
		TeacherID       string   `json:"teacher_id" validate:"required"`
		Reviews         []Review `json:"reviews" validate:"required,min=1,dive"`
		Comments        string   `json:"comments"`
		ExpectedVersion *int64   `json:"expected_version"`
	}

	TPDAction string

	TPDRequest struct {
		TeacherID         string    `json:"teacher_id"` // defaults to the acting member
		Action            TPDAction `json:"action" validate:"required,oneof=add update_status delete"`
		TPDID             string    `json:"tpd_id" validate:"required_unless=Action add"`
		Gap               string    `json:"gap" validate:"required_if=Action add"`
		RecommendedAction string    `json:"recommended_action" validate:"required_if=Action add"`
		Status            TPDStatus `json:"status" validate:"required_if=Action update_status"`
		ExpectedVersion   *int64    `json:"expected_version"`
	}
)

const (
	TPDAdd          TPDAction = "add"
	TPDUpdateStatus TPDAction = "update_status"
	TPDDelete       TPDAction = "delete"
)
