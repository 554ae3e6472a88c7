package lesson

import "time"

const (
	defaultResources   = "Basic classroom materials"
	defaultPicratLevel = "Interactive-Amplification"
	defaultExplanation = "Quality lesson plan"
	defaultQuality     = 0.5

	labAssistantFallback = "Error connecting to the lab assistant."

	maxRecommendations = 5
)

type (
	// Params are the curriculum parameters a lesson is generated from.
	Params struct {
		Grade             string `json:"grade" validate:"required"`
		Subject           string `json:"subject" validate:"required"`
		Strand            string `json:"strand" validate:"required"`
		SubStrand         string `json:"sub_strand" validate:"required"`
		Duration          string `json:"duration"`
		LessonType        string `json:"lesson_type"`
		SchoolLevel       string `json:"school_level"`
		AdditionalContext string `json:"additional_context"`
		Resources         string `json:"resources"`
	}

	Section struct {
		Title           string `json:"title"`
		Duration        string `json:"duration"`
		Content         string `json:"content"`
		TeacherActivity string `json:"teacher_activity"`
		StudentActivity string `json:"student_activity"`
	}

	// Content is the structured lesson document returned by the content service.
	Content struct {
		Topic               string    `json:"topic"`
		KeyInquiryQuestions []string  `json:"key_inquiry_questions"`
		CoreCompetencies    []string  `json:"core_competencies"`
		Values              []string  `json:"values"`
		Materials           []string  `json:"materials"`
		Sections            []Section `json:"sections"`
	}

	// Analysis is the content service's quality review of a lesson. Scores are in [0, 1].
	Analysis struct {
		DifficultyScore float64  `json:"difficulty_score"`
		CBCCompliance   float64  `json:"cbc_compliance"`
		EngagementLevel float64  `json:"engagement_level"`
		PicratLevel     string   `json:"picrat_level"`
		Recommendations []string `json:"recommendations"`
	}

	PicratAnalysis struct {
		Level       string `json:"level"`
		Explanation string `json:"explanation"`
	}

	Lesson struct {
		ID          string `json:"id"`
		Topic       string `json:"topic"`
		Subject     string `json:"subject"`
		Grade       string `json:"grade"`
		Strand      string `json:"strand"`
		SubStrand   string `json:"sub_strand"`
		Duration    string `json:"duration"`
		LessonType  string `json:"lesson_type"`
		SchoolLevel string `json:"school_level"`
		Content
		PicratAnalysis  PicratAnalysis `json:"picrat_analysis"`
		QualityScore    float64        `json:"quality_score"`
		DifficultyScore float64        `json:"difficulty_score"`
		CBCCompliance   float64        `json:"cbc_compliance"`
		GeneratedAt     time.Time      `json:"generated_at"`
	}

	// Generated is the outcome of the lesson pipeline. A degraded result carries the planned
	// skeleton and the reason the content service could not complete it.
	Generated struct {
		Lesson   Lesson `json:"lesson"`
		Degraded bool   `json:"degraded"`
		Reason   string `json:"reason,omitempty"`
	}

	RecommendRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		Subject   string `json:"subject" validate:"required"`
	}

	Recommendation struct {
		LessonID string  `json:"lesson_id"`
		Topic    string  `json:"topic"`
		Quality  float64 `json:"quality"`
	}

	Recommendations struct {
		StudentID       string           `json:"student_id"`
		Subject         string           `json:"subject"`
		Recommendations []Recommendation `json:"recommendations"`
	}

	LabQuery struct {
		Query string `json:"query" validate:"required"`
	}

	LabAnswer struct {
		Text     string `json:"text"`
		Degraded bool   `json:"degraded"`
		Reason   string `json:"reason,omitempty"`
	}
)

// DegradedReason reports why the content service could not complete the result, if it could not.
func (g Generated) DegradedReason() (string, bool) { return g.Reason, g.Degraded }

func (a LabAnswer) DegradedReason() (string, bool) { return a.Reason, a.Degraded }

func (p *Params) clean() {
	if p.Resources == "" {
		p.Resources = defaultResources
	}
}
