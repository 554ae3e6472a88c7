package appraisal

import (
	"context"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
)

var (
	// errors
	ErrSessionNotFound  = errors.WithMessage(core.ErrNotFound, "appraisal session")
	ErrStandardNotFound = errors.WithMessage(core.ErrNotFound, "teaching standard")
	ErrTPDNotFound      = errors.WithMessage(core.ErrNotFound, "TPD intervention")
	ErrNotSupervisor    = errors.WithMessage(core.ErrUnauthorized, "only supervisors can review appraisals")
	ErrNotOwner         = errors.WithMessage(core.ErrUnauthorized, "not allowed to act on another member's appraisal")
	ErrNotTeacher       = errors.WithMessage(core.ErrUnauthorized, "only teachers are appraised")
	ErrSelfReview       = errors.WithMessage(core.ErrUnauthorized, "supervisors cannot review their own appraisal")
	ErrNotEditable      = errors.WithMessage(core.ErrInvalidTransition, "appraisal can no longer be edited")
	ErrNotSubmittable   = errors.WithMessage(core.ErrInvalidTransition, "appraisal can no longer be submitted")
	ErrNotReviewable    = errors.WithMessage(core.ErrInvalidTransition, "appraisal has not been submitted")
	ErrVersionConflict  = errors.WithMessage(core.ErrConflict, "appraisal session was modified")
	errInvalidTPDStatus = errors.New("invalid status")

	// errUnchanged tells mutate to return the session as loaded, without saving it.
	errUnchanged = errors.New("unchanged")
)

type (
	// Repository persists sessions, one per teacher. Implementations join the transaction carried by ctx, if any.
	Repository interface {
		GetSessionByTeacher(ctx context.Context, teacherID string) (Session, error)
		CreateSession(ctx context.Context, s Session) (Session, error)
		// SaveSession replaces the stored session and bumps its Version.
		SaveSession(ctx context.Context, s Session) (Session, error)
		QuerySessions(ctx context.Context) ([]Session, error)
	}

	// StaffDirectory is the part of the staff service the engine needs.
	StaffDirectory interface {
		GetByID(ctx context.Context, id string) (staff.Member, error)
		Filter(ctx context.Context, filter staff.QueryFilter, orderings []core.DBOrdering) ([]staff.Member, error)
		ApplyAppraisal(ctx context.Context, id string, score, openGaps int) (staff.Member, error)
	}

	// Engine is the appraisal state machine: Draft -> Submitted -> Reviewed (-> Completed).
	Engine struct {
		repo       Repository
		staff      StaffDirectory
		tx         core.Transactor
		mailSvc    core.EmailService
		validate   *validator.Validate
		translator ut.Translator
		nowFunc    func() time.Time // mockable
	}
)

func NewEngine(
	repo Repository,
	staffDir StaffDirectory,
	tx core.Transactor,
	mailSvc core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
) *Engine {
	return &Engine{
		repo:       repo,
		staff:      staffDir,
		tx:         tx,
		mailSvc:    mailSvc,
		validate:   validate,
		translator: translator,
		nowFunc:    time.Now,
	}
}

func (e *Engine) validateStruct(s interface{}) error {
	return core.TranslateValidationErrors(e.validate.Struct(s), e.translator)
}

// canActFor reports whether actor may act on teacherID's session.
func canActFor(actor staff.Member, teacherID string) bool {
	return actor.ID == teacherID || actor.HasRole(staff.RoleSupervisor, staff.RoleAdmin)
}

func checkVersion(s Session, expected *int64) error {
	if expected != nil && *expected != s.Version {
		return ErrVersionConflict
	}
	return nil
}

// Init returns the teacher's session, creating it on first access. Only teachers own sessions.
// Sessions are keyed by teacher only: an existing session is returned as is,
// even when it belongs to another term than the one requested.
func (e *Engine) Init(ctx context.Context, actor staff.Member, req InitRequest) (Session, error) {
	if err := e.validateStruct(req); err != nil {
		return Session{}, err
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if !canActFor(actor, teacherID) {
		return Session{}, ErrNotOwner
	}

	var sess Session
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = e.getOrCreate(ctx, teacherID, req.Term, req.Year)
		return err
	})
	return sess, err
}

func (e *Engine) getOrCreate(ctx context.Context, teacherID, term string, year int) (Session, error) {
	sess, err := e.repo.GetSessionByTeacher(ctx, teacherID)
	if err == nil || !core.IsNotFound(err) {
		return sess, err
	}

	teacher, err := e.staff.GetByID(ctx, teacherID)
	if err != nil {
		return Session{}, err
	}
	if !teacher.IsTeacher() {
		return Session{}, ErrNotTeacher
	}
	now := e.nowFunc().UTC()
	curTerm, curYear := CurrentTerm(now)
	if term == "" {
		term = curTerm
	}
	if year == 0 {
		year = curYear
	}
	return e.repo.CreateSession(ctx, Session{
		ID:                     uuid.New().String(),
		TeacherID:              teacher.ID,
		TeacherName:            teacher.Name,
		Term:                   term,
		Year:                   year,
		Status:                 StatusDraft,
		Standards:              DefaultStandards(),
		LearnerProgressRecords: []string{},
		TPDPlan:                []TPD{},
		CreatedAt:              now,
		UpdatedAt:              now,
	})
}

// Get returns teacherID's session without creating it.
func (e *Engine) Get(ctx context.Context, actor staff.Member, teacherID string) (Session, error) {
	if teacherID == "" {
		teacherID = actor.ID
	}
	if !canActFor(actor, teacherID) {
		return Session{}, ErrNotOwner
	}
	return e.repo.GetSessionByTeacher(ctx, teacherID)
}

// List returns every session. Supervisors and admins only.
func (e *Engine) List(ctx context.Context, actor staff.Member) ([]Session, error) {
	if !actor.HasRole(staff.RoleSupervisor, staff.RoleAdmin) {
		return nil, ErrNotSupervisor
	}
	return e.repo.QuerySessions(ctx)
}

// mutate loads teacherID's session (creating it if create is set), applies fn and saves it.
func (e *Engine) mutate(ctx context.Context, teacherID string, create bool, fn func(s *Session) error) (Session, error) {
	var saved Session
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		var (
			sess Session
			err  error
		)
		if create {
			sess, err = e.getOrCreate(ctx, teacherID, "", 0)
		} else {
			sess, err = e.repo.GetSessionByTeacher(ctx, teacherID)
		}
		if err != nil {
			return err
		}
		if err = fn(&sess); err != nil {
			if err == errUnchanged {
				saved = sess
				return nil
			}
			return err
		}
		sess.UpdatedAt = e.nowFunc().UTC()
		saved, err = e.repo.SaveSession(ctx, sess)
		return err
	})
	return saved, err
}

// UpdateStandard records the acting teacher's self-rating, evidence and gaps on one standard.
// A rating of 1 or 2 with gaps adds a TPD intervention for those gaps, unless one already exists.
func (e *Engine) UpdateStandard(ctx context.Context, actor staff.Member, req UpdateStandardRequest) (Session, error) {
	if !actor.IsTeacher() {
		return Session{}, ErrNotTeacher
	}
	if err := e.validateStruct(req); err != nil {
		return Session{}, err
	}
	return e.mutate(ctx, actor.ID, true, func(s *Session) error {
		if err := checkVersion(*s, req.ExpectedVersion); err != nil {
			return err
		}
		if s.Status != StatusDraft && s.Status != StatusSubmitted {
			return ErrNotEditable
		}
		st, ok := s.standard(req.StandardID)
		if !ok {
			return ErrStandardNotFound
		}
		st.SelfRating = req.Rating
		st.Evidence = req.Evidence
		if st.Evidence == nil {
			st.Evidence = []string{}
		}
		st.GapsIdentified = req.Gaps

		if req.Rating > 0 && req.Rating < 3 && req.Gaps != "" && !s.hasTPDForGap(req.Gaps) {
			s.TPDPlan = append(s.TPDPlan, TPD{
				ID:                "tpd-" + uuid.New().String(),
				Gap:               req.Gaps,
				RecommendedAction: autoTPDAction,
				Status:            TPDPending,
			})
		}
		return nil
	})
}

// Submit moves the acting teacher's session from Draft to Submitted and notifies the supervisors.
// Submitting an already submitted session changes nothing.
func (e *Engine) Submit(ctx context.Context, actor staff.Member, req SubmitRequest) (Session, error) {
	if !actor.IsTeacher() {
		return Session{}, ErrNotTeacher
	}
	var transitioned bool
	sess, err := e.mutate(ctx, actor.ID, true, func(s *Session) error {
		if err := checkVersion(*s, req.ExpectedVersion); err != nil {
			return err
		}
		switch s.Status {
		case StatusDraft:
			s.Status = StatusSubmitted
			transitioned = true
		case StatusSubmitted:
			return errUnchanged
		default:
			return ErrNotSubmittable
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if transitioned {
		if err := e.notifySupervisors(ctx, actor, sess); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

// SupervisorReview applies supervisor ratings, marks the session Reviewed and writes the
// resulting score and promotion status back to the teacher's record.
func (e *Engine) SupervisorReview(ctx context.Context, actor staff.Member, req ReviewRequest) (Session, error) {
	if !actor.IsSupervisor() {
		return Session{}, ErrNotSupervisor
	}
	if err := e.validateStruct(req); err != nil {
		return Session{}, err
	}
	if req.TeacherID == actor.ID {
		return Session{}, ErrSelfReview
	}

	var saved Session
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		saved, err = e.mutate(ctx, req.TeacherID, false, func(s *Session) error {
			if err := checkVersion(*s, req.ExpectedVersion); err != nil {
				return err
			}
			if s.Status != StatusSubmitted && s.Status != StatusReviewed {
				return ErrNotReviewable
			}
			for _, rev := range req.Reviews {
				st, ok := s.standard(rev.StandardID)
				if !ok {
					return ErrStandardNotFound
				}
				st.SupervisorRating = rev.Rating
			}
			if req.Comments != "" {
				s.SupervisorComments = req.Comments
			}
			s.Status = StatusReviewed
			return nil
		})
		if err != nil {
			return err
		}

		teacher, err := e.staff.ApplyAppraisal(ctx, saved.TeacherID, Score(saved.Standards), saved.OpenTPDs())
		if err != nil {
			return errors.Wrap(err, "recording appraisal score")
		}
		e.notifyTeacher(ctx, teacher, saved)
		return nil
	})
	return saved, err
}

// ManageTPD adds, updates the status of or deletes an intervention.
// Teachers manage their own plan; supervisors and admins may manage anyone's.
func (e *Engine) ManageTPD(ctx context.Context, actor staff.Member, req TPDRequest) (Session, error) {
	if err := e.validateStruct(req); err != nil {
		return Session{}, err
	}
	if req.Action == TPDUpdateStatus && !req.Status.IsValid() {
		return Session{}, core.NewValidationError(errInvalidTPDStatus, core.FieldError{Field: "status", Error: errInvalidTPDStatus.Error()})
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = actor.ID
	}
	if !canActFor(actor, teacherID) {
		return Session{}, ErrNotOwner
	}

	return e.mutate(ctx, teacherID, teacherID == actor.ID, func(s *Session) error {
		if err := checkVersion(*s, req.ExpectedVersion); err != nil {
			return err
		}
		switch req.Action {
		case TPDAdd:
			s.TPDPlan = append(s.TPDPlan, TPD{
				ID:                "tpd-" + uuid.New().String(),
				Gap:               req.Gap,
				RecommendedAction: req.RecommendedAction,
				Status:            TPDPending,
			})
		case TPDUpdateStatus:
			for i := range s.TPDPlan {
				if s.TPDPlan[i].ID == req.TPDID {
					s.TPDPlan[i].Status = req.Status
					return nil
				}
			}
			return ErrTPDNotFound
		case TPDDelete:
			for i := range s.TPDPlan {
				if s.TPDPlan[i].ID == req.TPDID {
					s.TPDPlan = append(s.TPDPlan[:i], s.TPDPlan[i+1:]...)
					return nil
				}
			}
			return ErrTPDNotFound
		}
		return nil
	})
}

func (e *Engine) notifySupervisors(ctx context.Context, teacher staff.Member, sess Session) error {
	active := true
	supervisors, err := e.staff.Filter(ctx, staff.QueryFilter{Roles: []staff.Role{staff.RoleSupervisor}, IsActive: &active}, nil)
	if err != nil {
		return errors.Wrap(err, "finding supervisors")
	}
	msgs := make([]*core.EmailMessage, 0, len(supervisors))
	for _, sup := range supervisors {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: sup.Name, Address: sup.Email}},
			Subject:      "Appraisal submitted for review",
			TemplateName: "appraisal_submitted",
			TemplateData: map[string]interface{}{
				"RecipientName": sup.Name,
				"TeacherName":   teacher.Name,
				"TeacherID":     teacher.ID,
				"Term":          sess.Term,
				"Year":          sess.Year,
			},
		})
	}
	core.QueueOrSend(ctx, e.mailSvc, msgs...)
	return nil
}

func (e *Engine) notifyTeacher(ctx context.Context, teacher staff.Member, sess Session) {
	core.QueueOrSend(ctx, e.mailSvc, &core.EmailMessage{
		To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:      "Your appraisal has been reviewed",
		TemplateName: "appraisal_reviewed",
		TemplateData: map[string]interface{}{
			"TeacherName":     teacher.Name,
			"Term":            sess.Term,
			"Year":            sess.Year,
			"Score":           teacher.AppraisalScore,
			"PromotionStatus": teacher.PromotionStatus,
			"Comments":        sess.SupervisorComments,
		},
	})
}
