// Package lesson runs the lesson generation pipeline against the external content service.
package lesson

import (
	"context"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

type (
	// ContentService is the generative content collaborator.
	// Implementations return errors of kind core.ErrUpstreamUnavailable when the service fails.
	ContentService interface {
		GenerateLesson(ctx context.Context, p Params) (Content, error)
		AnalyzeLesson(ctx context.Context, l Lesson) (Analysis, error)
		Ask(ctx context.Context, query string) (string, error)
		Ping(ctx context.Context) error
	}

	// Repository persists generated lessons. Implementations join the transaction carried by ctx, if any.
	Repository interface {
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		QueryAllLessons(ctx context.Context) ([]Lesson, error)
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		content    ContentService
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time // mockable
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	content ContentService,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		content:    content,
		logger:     logger,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

// Generate plans a lesson, has the content service write and analyze it, and stores it.
// Content service failures give a degraded result and store nothing.
// The content service is called outside of any transaction; only the final write is transactional.
// onStored functions run in that same transaction: if one fails, nothing is stored.
func (svc *Service) Generate(ctx context.Context, p Params, onStored ...func(ctx context.Context, l Lesson) error) (Generated, error) {
	p.clean()
	if err := core.TranslateValidationErrors(svc.validate.Struct(p), svc.translator); err != nil {
		return Generated{}, err
	}

	lsn := svc.plan(p)

	content, err := svc.content.GenerateLesson(ctx, p)
	if err != nil {
		return svc.degraded(lsn, errors.Wrap(err, "generating lesson content")), nil
	}
	lsn.Content = content
	if lsn.Topic == "" {
		lsn.Topic = p.SubStrand
	}

	analysis, err := svc.content.AnalyzeLesson(ctx, lsn)
	if err != nil {
		return svc.degraded(lsn, errors.Wrap(err, "analyzing lesson")), nil
	}
	applyAnalysis(&lsn, analysis)

	var stored Lesson
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		if stored, err = svc.repo.CreateLesson(ctx, lsn); err != nil {
			return err
		}
		for _, fn := range onStored {
			if err := fn(ctx, stored); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Generated{}, err
	}
	return Generated{Lesson: stored}, nil
}

func (svc *Service) plan(p Params) Lesson {
	now := svc.nowFunc().UTC()
	return Lesson{
		ID:          fmt.Sprintf("%s_%s_%d_%s", p.Subject, p.Grade, now.Unix(), uuid.New().String()[:8]),
		Topic:       p.SubStrand,
		Subject:     p.Subject,
		Grade:       p.Grade,
		Strand:      p.Strand,
		SubStrand:   p.SubStrand,
		Duration:    p.Duration,
		LessonType:  p.LessonType,
		SchoolLevel: p.SchoolLevel,
		GeneratedAt: now,
	}
}

func (svc *Service) degraded(lsn Lesson, err error) Generated {
	svc.logger.Warn("lesson pipeline degraded", err, map[string]interface{}{"lesson_id": lsn.ID})
	return Generated{Lesson: lsn, Degraded: true, Reason: err.Error()}
}

// applyAnalysis sets the quality scores: quality = (difficulty + cbc compliance) / 2.
func applyAnalysis(lsn *Lesson, a Analysis) {
	lsn.DifficultyScore = a.DifficultyScore
	lsn.CBCCompliance = a.CBCCompliance
	lsn.QualityScore = (a.DifficultyScore + a.CBCCompliance) / 2
	lsn.PicratAnalysis = PicratAnalysis{Level: a.PicratLevel, Explanation: strings.Join(a.Recommendations, " ")}
	if lsn.PicratAnalysis.Level == "" {
		lsn.PicratAnalysis.Level = defaultPicratLevel
	}
	if len(a.Recommendations) == 0 {
		lsn.PicratAnalysis.Explanation = defaultExplanation
	}
}

// Recommend returns up to 5 stored lessons of the requested subject, oldest first.
func (svc *Service) Recommend(ctx context.Context, req RecommendRequest) (Recommendations, error) {
	if err := core.TranslateValidationErrors(svc.validate.Struct(req), svc.translator); err != nil {
		return Recommendations{}, err
	}
	all, err := svc.repo.QueryAllLessons(ctx)
	if err != nil {
		return Recommendations{}, err
	}

	recs := Recommendations{StudentID: req.StudentID, Subject: req.Subject, Recommendations: []Recommendation{}}
	for _, l := range all {
		if l.Subject != req.Subject {
			continue
		}
		quality := l.QualityScore
		if quality == 0 {
			quality = defaultQuality
		}
		recs.Recommendations = append(recs.Recommendations, Recommendation{LessonID: l.ID, Topic: l.Topic, Quality: quality})
		if len(recs.Recommendations) == maxRecommendations {
			break
		}
	}
	return recs, nil
}

// LabAssistant forwards a free-text question to the content service.
func (svc *Service) LabAssistant(ctx context.Context, q LabQuery) (LabAnswer, error) {
	q.Query = core.CleanString(q.Query)
	if err := core.TranslateValidationErrors(svc.validate.Struct(q), svc.translator); err != nil {
		return LabAnswer{}, err
	}
	text, err := svc.content.Ask(ctx, q.Query)
	if err != nil {
		svc.logger.Warn("lab assistant unavailable", err)
		return LabAnswer{Text: labAssistantFallback, Degraded: true, Reason: err.Error()}, nil
	}
	return LabAnswer{Text: text}, nil
}

func (svc *Service) Ping(ctx context.Context) error {
	return svc.content.Ping(ctx)
}
