package insights

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/student"
)

func stu(name string, gaps []string, down ...string) student.Student {
	s := student.Student{Name: name, LearningGaps: gaps}
	for _, sk := range []string{"Critical Thinking", "Digital Literacy", "Communication"} {
		trend := student.TrendUp
		for _, d := range down {
			if d == sk {
				trend = student.TrendDown
			}
		}
		s.Skills = append(s.Skills, student.SkillMetric{Name: sk, Score: 60, Trend: trend})
	}
	return s
}

func TestCompute(t *testing.T) {
	t.Run("empty class", func(t *testing.T) {
		ins := Compute(nil)
		assert.Empty(t, ins.CommonGaps)
		assert.Empty(t, ins.DecliningSkills)
		assert.Equal(t, []string{peerLearningIntervention}, ins.RecommendedInterventions)
	})

	students := []student.Student{
		stu("Kevin", []string{"Fractions", "Photosynthesis"}, "Digital Literacy"),
		stu("Amina", []string{"Algebra", "Fractions"}, "Communication", "Digital Literacy"),
		stu("Brian", []string{"Photosynthesis", "Fractions", "Fractions", "Essay Writing"}),
		stu("Zawadi", []string{"Algebra"}, "Communication"),
	}
	ins := Compute(students)

	t.Run("top gaps", func(t *testing.T) {
		assert.Equal(t, []GapFrequency{
			{Gap: "Fractions", Count: 3, Percentage: 75},
			{Gap: "Photosynthesis", Count: 2, Percentage: 50}, // seen before Algebra
			{Gap: "Algebra", Count: 2, Percentage: 50},
		}, ins.CommonGaps)
		for _, g := range ins.CommonGaps {
			assert.LessOrEqual(t, g.Percentage, 100)
		}
	})

	t.Run("repeated gap counts once per student", func(t *testing.T) {
		got := Compute([]student.Student{stu("Brian", []string{"Fractions", "Fractions", "Fractions"})})
		assert.Equal(t, []GapFrequency{{Gap: "Fractions", Count: 1, Percentage: 100}}, got.CommonGaps)
	})

	t.Run("declining skills", func(t *testing.T) {
		assert.Equal(t, []DecliningSkill{
			{Skill: "Digital Literacy", StudentCount: 2, Students: []string{"Kevin", "Amina"}},
			{Skill: "Communication", StudentCount: 2, Students: []string{"Amina", "Zawadi"}},
		}, ins.DecliningSkills)
	})

	t.Run("interventions", func(t *testing.T) {
		assert.Equal(t, []string{
			`Schedule a remedial session focusing on "Fractions" which affects 75% of the class.`,
			`Review teaching methods for "Digital Literacy" as 2 students show declining proficiency.`,
			peerLearningIntervention,
		}, ins.RecommendedInterventions)
	})
}

type studentsStub []student.Student

func (s studentsStub) QueryAll(context.Context) ([]student.Student, error) { return s, nil }

func TestAggregator_ClassInsights(t *testing.T) {
	agg := NewAggregator(studentsStub{stu("Kevin", []string{"Fractions"})})
	ins, err := agg.ClassInsights(context.Background())
	require.NoError(t, err)
	require.Len(t, ins.CommonGaps, 1)
	assert.Equal(t, 100, ins.CommonGaps[0].Percentage)
	assert.Empty(t, ins.DecliningSkills)
	assert.Len(t, ins.RecommendedInterventions, 2)
}
