package walker

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/learningpath"
	"github.com/trezcool/elimu/core/lesson"
	"github.com/trezcool/elimu/core/observation"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
)

var (
	// errors
	ErrUnknownCommand = errors.WithMessage(core.ErrNotFound, "unknown command")
	errInvalidAction  = errors.New("invalid action")
	errBadPayload     = errors.New("malformed payload")
)

// Command is one walker operation with its typed payload.
// The set is closed: only the types of this package implement it.
type Command interface {
	Name() string
	command()
}

type (
	InitAppraisal         struct{ appraisal.InitRequest }
	UpdateStandard        struct{ appraisal.UpdateStandardRequest }
	SubmitAppraisal       struct{ appraisal.SubmitRequest }
	SupervisorReview      struct{ appraisal.ReviewRequest }
	ManageTPD             struct{ appraisal.TPDRequest }
	RecordStudentProgress struct{ student.ProgressUpdate }
	GenerateLearningPath  struct{ learningpath.Request }
	AssessSkills          struct{ learningpath.AssessmentRequest }
	RecordObservation     struct{ observation.NewObservation }
	GenerateLesson        struct{ lesson.Params }
	RecommendLessons      struct{ lesson.RecommendRequest }
	LabAssistant          struct{ lesson.LabQuery }

	GetAppraisal struct {
		TeacherID string `json:"teacher_id"` // defaults to the acting member
	}
	GetAppraisals    struct{}
	GetAllStudents   struct{}
	GetClassInsights struct{}
	GetLearningPath  struct {
		StudentNodeID string `json:"student_id"`
	}
	GetStaffList struct {
		Ordering string                `json:"ordering"`
		Status   staff.PromotionStatus `json:"status"`
	}
	GetAllUsers struct{}
	// ManageUser creates (User) or deletes (IDs) staff accounts.
	ManageUser struct {
		Action string          `json:"action"` // create | delete
		User   staff.NewMember `json:"user"`
		IDs    []string        `json:"ids"`
	}
	GetObservations struct {
		TeacherID string `json:"teacher_id"`
	}
	// ManageStudent adds (Student) or deletes (IDs) students.
	ManageStudent struct {
		Action  string             `json:"action"` // add | delete
		Student student.NewStudent `json:"student"`
		IDs     []string           `json:"ids"`
	}
	TrackProgress struct {
		StudentID string `json:"student_id"`
	}
)

func (InitAppraisal) Name() string         { return "init_appraisal" }
func (UpdateStandard) Name() string        { return "update_standard" }
func (SubmitAppraisal) Name() string       { return "submit_appraisal" }
func (SupervisorReview) Name() string      { return "supervisor_review" }
func (ManageTPD) Name() string             { return "manage_tpd" }
func (GetAppraisal) Name() string          { return "get_appraisal" }
func (GetAppraisals) Name() string         { return "get_appraisals" }
func (GetAllStudents) Name() string        { return "get_all_students" }
func (GetClassInsights) Name() string      { return "get_class_insights" }
func (RecordStudentProgress) Name() string { return "record_student_progress" }
func (GenerateLearningPath) Name() string  { return "generate_learning_path" }
func (GetLearningPath) Name() string       { return "get_learning_path" }
func (GetStaffList) Name() string          { return "get_staff_list" }
func (GetAllUsers) Name() string           { return "get_all_users" }
func (ManageUser) Name() string            { return "manage_user" }
func (RecordObservation) Name() string     { return "record_observation" }
func (GetObservations) Name() string       { return "get_observations" }
func (ManageStudent) Name() string         { return "manage_student" }
func (TrackProgress) Name() string         { return "track_progress" }
func (AssessSkills) Name() string          { return "assess_skills" }
func (GenerateLesson) Name() string        { return "generate_lesson" }
func (RecommendLessons) Name() string      { return "recommend_lessons" }
func (LabAssistant) Name() string          { return "lab_assistant" }

func (InitAppraisal) command()         {}
func (UpdateStandard) command()        {}
func (SubmitAppraisal) command()       {}
func (SupervisorReview) command()      {}
func (ManageTPD) command()             {}
func (GetAppraisal) command()          {}
func (GetAppraisals) command()         {}
func (GetAllStudents) command()        {}
func (GetClassInsights) command()      {}
func (RecordStudentProgress) command() {}
func (GenerateLearningPath) command()  {}
func (GetLearningPath) command()       {}
func (GetStaffList) command()          {}
func (GetAllUsers) command()           {}
func (ManageUser) command()            {}
func (RecordObservation) command()     {}
func (GetObservations) command()       {}
func (ManageStudent) command()         {}
func (TrackProgress) command()         {}
func (AssessSkills) command()          {}
func (GenerateLesson) command()        {}
func (RecommendLessons) command()      {}
func (LabAssistant) command()          {}

type decoder func(payload []byte) (Command, error)

var registry = map[string]decoder{
	InitAppraisal{}.Name():         decodeAs[InitAppraisal],
	UpdateStandard{}.Name():        decodeAs[UpdateStandard],
	SubmitAppraisal{}.Name():       decodeAs[SubmitAppraisal],
	SupervisorReview{}.Name():      decodeAs[SupervisorReview],
	ManageTPD{}.Name():             decodeAs[ManageTPD],
	GetAppraisal{}.Name():          decodeAs[GetAppraisal],
	GetAppraisals{}.Name():         decodeAs[GetAppraisals],
	GetAllStudents{}.Name():        decodeAs[GetAllStudents],
	GetClassInsights{}.Name():      decodeAs[GetClassInsights],
	RecordStudentProgress{}.Name(): decodeAs[RecordStudentProgress],
	GenerateLearningPath{}.Name():  decodeAs[GenerateLearningPath],
	GetLearningPath{}.Name():       decodeAs[GetLearningPath],
	GetStaffList{}.Name():          decodeAs[GetStaffList],
	GetAllUsers{}.Name():           decodeAs[GetAllUsers],
	ManageUser{}.Name():            decodeAs[ManageUser],
	RecordObservation{}.Name():     decodeAs[RecordObservation],
	GetObservations{}.Name():       decodeAs[GetObservations],
	ManageStudent{}.Name():         decodeAs[ManageStudent],
	TrackProgress{}.Name():         decodeAs[TrackProgress],
	AssessSkills{}.Name():          decodeAs[AssessSkills],
	GenerateLesson{}.Name():        decodeAs[GenerateLesson],
	RecommendLessons{}.Name():      decodeAs[RecommendLessons],
	LabAssistant{}.Name():          decodeAs[LabAssistant],
}

func decodeAs[C Command](payload []byte) (Command, error) {
	var cmd C
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return cmd, nil
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, core.NewValidationError(errBadPayload, core.FieldError{Field: "payload", Error: err.Error()})
	}
	return cmd, nil
}

// Decode builds the command called name from its JSON payload.
func Decode(name string, payload []byte) (Command, error) {
	dec, ok := registry[name]
	if !ok {
		return nil, errors.WithMessage(ErrUnknownCommand, name)
	}
	return dec(payload)
}

// Names returns the recognized command names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
