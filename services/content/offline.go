package contentsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/elimu/core/lesson"
)

// offlineService produces deterministic templated content. Used in DEV and TEST.
type offlineService struct{}

var _ lesson.ContentService = offlineService{}

func NewOfflineService() lesson.ContentService {
	return offlineService{}
}

func (offlineService) GenerateLesson(_ context.Context, p lesson.Params) (lesson.Content, error) {
	materials := []string{}
	for _, r := range strings.Split(p.Resources, ",") {
		if r = strings.TrimSpace(r); r != "" {
			materials = append(materials, r)
		}
	}
	return lesson.Content{
		Topic: p.SubStrand,
		KeyInquiryQuestions: []string{
			fmt.Sprintf("How do we use %s in our daily lives?", p.SubStrand),
			fmt.Sprintf("Why is %s important in %s?", p.SubStrand, p.Subject),
		},
		CoreCompetencies: []string{"Critical thinking and problem solving", "Communication and collaboration", "Digital literacy"},
		Values:           []string{"Responsibility", "Unity"},
		Materials:        materials,
		Sections: []lesson.Section{
			{
				Title:           "Introduction",
				Duration:        "5 minutes",
				Content:         "Link " + p.SubStrand + " to the learners' experience.",
				TeacherActivity: "Pose the key inquiry questions.",
				StudentActivity: "Share prior knowledge in pairs.",
			},
			{
				Title:           "Exploration",
				Duration:        "25 minutes",
				Content:         "Hands-on activity on " + p.SubStrand + ".",
				TeacherActivity: "Guide groups and probe reasoning.",
				StudentActivity: "Work in groups and record observations.",
			},
			{
				Title:           "Reflection",
				Duration:        "10 minutes",
				Content:         "Summarize the key ideas.",
				TeacherActivity: "Assess understanding with exit questions.",
				StudentActivity: "Present findings to the class.",
			},
		},
	}, nil
}

func (offlineService) AnalyzeLesson(_ context.Context, l lesson.Lesson) (lesson.Analysis, error) {
	a := lesson.Analysis{
		DifficultyScore: .7,
		CBCCompliance:   .8,
		EngagementLevel: .7,
		PicratLevel:     "Interactive-Amplification",
		Recommendations: []string{"Add a short formative assessment."},
	}
	if len(l.Sections) >= 3 {
		a.EngagementLevel = .8
	}
	if len(l.Materials) == 0 {
		a.Recommendations = append(a.Recommendations, "List the materials learners need.")
	}
	return a, nil
}

func (offlineService) Ask(_ context.Context, query string) (string, error) {
	return fmt.Sprintf("Great question! Let's explore %q together: observe carefully, predict what will happen, "+
		"then test your idea with a safe experiment and an adult nearby.", query), nil
}

func (offlineService) Ping(context.Context) error { return nil }
