// Package learningpath materializes learning paths and skill assessments as graph state.
package learningpath

import (
	"context"
	"fmt"
	"math"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/graph"
	"github.com/trezcool/elimu/core/student"
)

var (
	// errors
	ErrPathNotFound = errors.WithMessage(core.ErrNotFound, "learning path")
	errPathMismatch = errors.New("stored path does not match the generated modules")
)

// maxPathLength bounds traversals of stored paths.
const maxPathLength = 64

type (
	StudentProfile struct {
		Name         string `json:"name" validate:"required"`
		CurrentLevel string `json:"current_level"`
	}

	Request struct {
		TargetSubject  string         `json:"target_subject" validate:"required"`
		StudentProfile StudentProfile `json:"student_profile"`
	}

	Module struct {
		ModuleID      string `json:"module_id"`
		Title         string `json:"title"`
		ModuleType    string `json:"module_type"`
		DurationHours int    `json:"duration_hours"`
		Description   string `json:"description"`
	}

	Path struct {
		StudentNodeID string   `json:"student_id"`
		Path          []Module `json:"path"`
		TotalDuration int      `json:"total_duration_hours"`
	}

	// StudentSource looks up the stored student records skill assessments are based on.
	StudentSource interface {
		GetByID(ctx context.Context, id string) (student.Student, error)
	}

	Generator struct {
		graph      *graph.Store
		students   StudentSource
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time // mockable
	}
)

func NewGenerator(g *graph.Store, students StudentSource, validate *validator.Validate, translator ut.Translator) *Generator {
	return &Generator{
		graph:      g,
		students:   students,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

// moduleTemplate is the fixed Theory -> Practical -> Capstone sequence.
func moduleTemplate(subject string) []Module {
	return []Module{
		{Title: subject + " Fundamentals", ModuleType: "Theory", DurationHours: 8, Description: "Core concepts and definitions"},
		{Title: "Applied " + subject, ModuleType: "Practical", DurationHours: 12, Description: "Hands-on experiments"},
		{Title: subject + " Capstone Project", ModuleType: "Project", DurationHours: 16, Description: "Integration of concepts"},
	}
}

// Generate creates a student node and a chain of module nodes linked by an enrolled_in edge
// and then teaches edges. Every node exists before an edge references it.
// Callers wanting all-or-nothing semantics run it inside a transaction.
func (gen *Generator) Generate(ctx context.Context, req Request) (Path, error) {
	req.TargetSubject = core.CleanString(req.TargetSubject)
	req.StudentProfile.Name = core.CleanString(req.StudentProfile.Name)
	if err := core.TranslateValidationErrors(gen.validate.Struct(req), gen.translator); err != nil {
		return Path{}, err
	}

	stuNode, err := gen.graph.CreateNode(ctx, graph.NodeStudent, graph.Attrs{
		"name":  req.StudentProfile.Name,
		"level": req.StudentProfile.CurrentLevel,
	})
	if err != nil {
		return Path{}, errors.Wrap(err, "creating student node")
	}

	modules := moduleTemplate(req.TargetSubject)
	prevID := stuNode.ID
	for i := range modules {
		m := &modules[i]
		node, err := gen.graph.CreateNode(ctx, graph.NodeLearningModule, graph.Attrs{
			"title":       m.Title,
			"type":        m.ModuleType,
			"duration":    m.DurationHours,
			"description": m.Description,
			"subject":     req.TargetSubject,
		})
		if err != nil {
			return Path{}, errors.Wrap(err, "creating module node")
		}
		m.ModuleID = node.ID

		if i == 0 {
			_, err = gen.graph.CreateEdge(ctx, prevID, node.ID, graph.EdgeEnrolledIn, graph.Attrs{
				"date": gen.nowFunc().UTC().Format(time.RFC3339),
			})
		} else {
			_, err = gen.graph.CreateEdge(ctx, prevID, node.ID, graph.EdgeTeaches, graph.Attrs{"effectiveness": 1.0})
		}
		if err != nil {
			return Path{}, errors.Wrap(err, "linking module node")
		}
		prevID = node.ID
	}

	// the returned list and the stored chain must agree
	stored, err := gen.Trace(ctx, stuNode.ID)
	if err != nil {
		return Path{}, err
	}
	if len(stored.Path) != len(modules) {
		return Path{}, errPathMismatch
	}
	for i := range modules {
		if stored.Path[i].ModuleID != modules[i].ModuleID {
			return Path{}, errPathMismatch
		}
	}

	return Path{StudentNodeID: stuNode.ID, Path: modules, TotalDuration: totalDuration(modules)}, nil
}

// Trace rebuilds a stored learning path by walking the graph from the student node.
func (gen *Generator) Trace(ctx context.Context, studentNodeID string) (Path, error) {
	node, err := gen.graph.GetNode(ctx, studentNodeID)
	if err != nil {
		return Path{}, err
	}
	if node.Type != graph.NodeStudent {
		return Path{}, ErrPathNotFound
	}

	nodes, err := gen.graph.Walk(ctx, node.ID, graph.EdgeEnrolledIn, graph.EdgeTeaches, maxPathLength)
	if err != nil {
		return Path{}, err
	}
	if len(nodes) == 0 {
		return Path{}, ErrPathNotFound
	}
	modules := make([]Module, 0, len(nodes))
	for _, n := range nodes {
		modules = append(modules, Module{
			ModuleID:      n.ID,
			Title:         n.Attrs.String("title"),
			ModuleType:    n.Attrs.String("type"),
			DurationHours: n.Attrs.Int("duration"),
			Description:   n.Attrs.String("description"),
		})
	}
	return Path{StudentNodeID: node.ID, Path: modules, TotalDuration: totalDuration(modules)}, nil
}

func totalDuration(modules []Module) int {
	var total int
	for _, m := range modules {
		total += m.DurationHours
	}
	return total
}

// Proficiency levels, by overall proficiency.
const (
	LevelAdvanced   = "Advanced"
	LevelProficient = "Proficient"
	LevelDeveloping = "Developing"
	LevelBeginning  = "Beginning"
)

// strongThreshold separates strong areas (above) from improvement areas (below).
const strongThreshold = 80

var skillCategories = map[string]string{
	"Critical Thinking": "Cognitive",
	"Digital Literacy":  "Technical",
	"Communication":     "Social",
	"Collaboration":     "Social",
}

type (
	AssessmentRequest struct {
		StudentID        string   `json:"student_id" validate:"required"`
		CompletedModules []string `json:"completed_modules"`
	}

	Assessment struct {
		StudentID          string   `json:"student_id"`
		StudentNodeID      string   `json:"student_node_id"`
		OverallProficiency float64  `json:"overall_proficiency"` // 0-1
		Level              string   `json:"level"`
		StrongAreas        []string `json:"strong_areas"`
		ImprovementAreas   []string `json:"improvement_areas"`
		Recommendations    []string `json:"recommendations"`
	}
)

func LevelFor(proficiency float64) string {
	switch {
	case proficiency >= .85:
		return LevelAdvanced
	case proficiency >= .7:
		return LevelProficient
	case proficiency >= .5:
		return LevelDeveloping
	}
	return LevelBeginning
}

// AssessSkills summarizes a student's stored skill scores and records one skill node per skill,
// linked from a fresh student node by assessed_in edges.
func (gen *Generator) AssessSkills(ctx context.Context, req AssessmentRequest) (Assessment, error) {
	if err := core.TranslateValidationErrors(gen.validate.Struct(req), gen.translator); err != nil {
		return Assessment{}, err
	}
	stu, err := gen.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return Assessment{}, err
	}

	asmt := Assessment{
		StudentID:        stu.ID,
		StrongAreas:      []string{},
		ImprovementAreas: []string{},
		Recommendations:  []string{},
	}
	var total int
	weakest := -1
	for i, sk := range stu.Skills {
		total += sk.Score
		switch {
		case sk.Score > strongThreshold:
			asmt.StrongAreas = append(asmt.StrongAreas, sk.Name)
		case sk.Score < strongThreshold:
			asmt.ImprovementAreas = append(asmt.ImprovementAreas, sk.Name)
		}
		if weakest < 0 || sk.Score < stu.Skills[weakest].Score {
			weakest = i
		}
	}
	if len(stu.Skills) > 0 {
		mean := float64(total) / float64(len(stu.Skills)) / 100
		asmt.OverallProficiency = math.Round(mean*100) / 100
	}
	asmt.Level = LevelFor(asmt.OverallProficiency)
	asmt.Recommendations = recommendations(asmt, stu, weakest, len(req.CompletedModules))

	stuNode, err := gen.graph.CreateNode(ctx, graph.NodeStudent, graph.Attrs{
		"name":       stu.Name,
		"level":      asmt.Level,
		"student_id": stu.ID,
	})
	if err != nil {
		return Assessment{}, errors.Wrap(err, "creating student node")
	}
	asmt.StudentNodeID = stuNode.ID
	for _, sk := range stu.Skills {
		category, ok := skillCategories[sk.Name]
		if !ok {
			category = "General"
		}
		skNode, err := gen.graph.CreateNode(ctx, graph.NodeSkill, graph.Attrs{
			"name":     sk.Name,
			"score":    float64(sk.Score) / 100,
			"category": category,
		})
		if err != nil {
			return Assessment{}, errors.Wrap(err, "creating skill node")
		}
		if _, err = gen.graph.CreateEdge(ctx, stuNode.ID, skNode.ID, graph.EdgeAssessedIn, graph.Attrs{
			"date": gen.nowFunc().UTC().Format(time.RFC3339),
		}); err != nil {
			return Assessment{}, errors.Wrap(err, "linking skill node")
		}
	}
	return asmt, nil
}

func recommendations(asmt Assessment, stu student.Student, weakest, completed int) []string {
	recs := make([]string, 0, 3)
	switch asmt.Level {
	case LevelAdvanced, LevelProficient:
		recs = append(recs, "Continue with advanced practical modules")
	default:
		recs = append(recs, "Revisit foundational modules before moving on")
	}
	if weakest >= 0 && len(asmt.ImprovementAreas) > 0 {
		recs = append(recs, fmt.Sprintf("Focus on %s exercises", stu.Skills[weakest].Name))
	}
	if completed == 0 {
		recs = append(recs, "Start a learning path to build a module history")
	}
	return recs
}
