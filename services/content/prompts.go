package contentsvc

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/lesson"
)

// lessonDocument is the JSON layout the model is asked to produce.
type lessonDocument struct {
	Topic               string   `json:"topic"`
	KeyInquiryQuestions []string `json:"keyInquiryQuestions"`
	CoreCompetencies    []string `json:"coreCompetencies"`
	Values              []string `json:"values"`
	Materials           []string `json:"materials"`
	Sections            []struct {
		Title           string `json:"title"`
		Duration        string `json:"duration"`
		Content         string `json:"content"`
		TeacherActivity string `json:"teacherActivity"`
		StudentActivity string `json:"studentActivity"`
	} `json:"sections"`
}

func (doc lessonDocument) content() lesson.Content {
	c := lesson.Content{
		Topic:               doc.Topic,
		KeyInquiryQuestions: nonNil(doc.KeyInquiryQuestions),
		CoreCompetencies:    nonNil(doc.CoreCompetencies),
		Values:              nonNil(doc.Values),
		Materials:           nonNil(doc.Materials),
		Sections:            make([]lesson.Section, 0, len(doc.Sections)),
	}
	for _, s := range doc.Sections {
		c.Sections = append(c.Sections, lesson.Section{
			Title:           s.Title,
			Duration:        s.Duration,
			Content:         s.Content,
			TeacherActivity: s.TeacherActivity,
			StudentActivity: s.StudentActivity,
		})
	}
	return c
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func lessonPrompt(p lesson.Params) string {
	return fmt.Sprintf(`Create a comprehensive Kenyan Competency-Based Curriculum (CBC/CBE) lesson plan.

Level: %[1]s School
Grade: %[2]s
Subject: %[3]s
Strand: %[4]s
Sub-Strand: %[5]s
Duration: %[6]s (%[7]s)
Available Resources: %[8]s
Context/Focus: %[9]s

STRICT REQUIREMENTS:
1. Content must be appropriate for %[1]s School, Grade %[2]s
2. Follow CBC framework principles

Generate a detailed lesson plan with a concise topic title, 2-3 key inquiry questions,
3-5 core competencies, 2-4 values, 5-8 materials and 3-4 sections.

Return ONLY valid JSON with this exact structure:
{
  "topic": "string",
  "keyInquiryQuestions": ["string"],
  "coreCompetencies": ["string"],
  "values": ["string"],
  "materials": ["string"],
  "sections": [
    {"title": "string", "duration": "string", "content": "string", "teacherActivity": "string", "studentActivity": "string"}
  ]
}`, p.SchoolLevel, p.Grade, p.Subject, p.Strand, p.SubStrand, p.Duration, p.LessonType, p.Resources, p.AdditionalContext)
}

func analysisPrompt(l lesson.Lesson) (string, error) {
	content, err := json.MarshalIndent(l.Content, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding lesson content")
	}
	return fmt.Sprintf(`Analyze this CBC lesson plan and provide quality scores:

Subject: %s
Grade: %s
Topic: %s
Strand: %s

Lesson Content:
%s

Provide scores (0.0 to 1.0) for difficulty_score (age-appropriateness), cbc_compliance and
engagement_level, a PICRAT classification (e.g. "Interactive-Amplification") and 2-3 recommendations.

Return ONLY valid JSON:
{
  "difficulty_score": 0.0,
  "cbc_compliance": 0.0,
  "engagement_level": 0.0,
  "picrat_level": "string",
  "recommendations": ["string"]
}`, l.Subject, l.Grade, l.Topic, l.Strand, content), nil
}

func labPrompt(query string) string {
	return fmt.Sprintf(`You are a friendly Virtual Lab Assistant for Kenyan students following the CBC curriculum.

Student Query: %s

Provide a helpful, concise response (under 200 words) that explains scientific concepts simply,
suggests safe and age-appropriate experiments and relates to the Kenyan CBC curriculum.
Keep it conversational and encouraging.`, query)
}
