// Package insights derives class-wide analytics from student records.
package insights

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/trezcool/elimu/core/student"
)

// topGaps is how many of the most frequent learning gaps are reported.
const topGaps = 3

const peerLearningIntervention = "Encourage peer-to-peer learning groups mixing high and low performers."

type (
	GapFrequency struct {
		Gap        string `json:"gap"`
		Count      int    `json:"count"`
		Percentage int    `json:"percentage"` // of the class
	}

	DecliningSkill struct {
		Skill        string   `json:"skill"`
		StudentCount int      `json:"student_count"`
		Students     []string `json:"students"`
	}

	// ClassInsights is derived on demand and never stored.
	ClassInsights struct {
		CommonGaps               []GapFrequency   `json:"common_gaps"`
		DecliningSkills          []DecliningSkill `json:"declining_skills"`
		RecommendedInterventions []string         `json:"recommended_interventions"`
	}

	StudentSource interface {
		QueryAll(ctx context.Context) ([]student.Student, error)
	}

	Aggregator struct {
		students StudentSource
	}
)

func NewAggregator(students StudentSource) *Aggregator {
	return &Aggregator{students: students}
}

// ClassInsights computes the insights of every stored student.
func (agg *Aggregator) ClassInsights(ctx context.Context) (ClassInsights, error) {
	students, err := agg.students.QueryAll(ctx)
	if err != nil {
		return ClassInsights{}, err
	}
	return Compute(students), nil
}

// Compute aggregates gap frequencies and declining skills. Ties keep first-seen order.
func Compute(students []student.Student) ClassInsights {
	ins := ClassInsights{
		CommonGaps:               commonGaps(students),
		DecliningSkills:          decliningSkills(students),
		RecommendedInterventions: make([]string, 0, 3),
	}

	if len(ins.CommonGaps) > 0 {
		top := ins.CommonGaps[0]
		ins.RecommendedInterventions = append(ins.RecommendedInterventions, fmt.Sprintf(
			"Schedule a remedial session focusing on %q which affects %d%% of the class.", top.Gap, top.Percentage,
		))
	}
	if len(ins.DecliningSkills) > 0 {
		top := ins.DecliningSkills[0]
		ins.RecommendedInterventions = append(ins.RecommendedInterventions, fmt.Sprintf(
			"Review teaching methods for %q as %d students show declining proficiency.", top.Skill, top.StudentCount,
		))
	}
	ins.RecommendedInterventions = append(ins.RecommendedInterventions, peerLearningIntervention)
	return ins
}

func commonGaps(students []student.Student) []GapFrequency {
	gaps := make([]GapFrequency, 0)
	index := make(map[string]int)
	for _, s := range students {
		seen := make(map[string]bool, len(s.LearningGaps))
		for _, g := range s.LearningGaps {
			if seen[g] {
				continue // a gap counts once per student
			}
			seen[g] = true
			if i, ok := index[g]; ok {
				gaps[i].Count++
				continue
			}
			index[g] = len(gaps)
			gaps = append(gaps, GapFrequency{Gap: g, Count: 1})
		}
	}

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Count > gaps[j].Count })
	if len(gaps) > topGaps {
		gaps = gaps[:topGaps]
	}
	for i := range gaps {
		gaps[i].Percentage = int(math.Round(float64(gaps[i].Count) / float64(len(students)) * 100))
	}
	return gaps
}

func decliningSkills(students []student.Student) []DecliningSkill {
	skills := make([]DecliningSkill, 0)
	index := make(map[string]int)
	for _, s := range students {
		for _, sk := range s.Skills {
			if sk.Trend != student.TrendDown {
				continue
			}
			i, ok := index[sk.Name]
			if !ok {
				i = len(skills)
				index[sk.Name] = i
				skills = append(skills, DecliningSkill{Skill: sk.Name})
			}
			skills[i].Students = append(skills[i].Students, s.Name)
			skills[i].StudentCount++
		}
	}
	sort.SliceStable(skills, func(i, j int) bool { return skills[i].StudentCount > skills[j].StudentCount })
	return skills
}
