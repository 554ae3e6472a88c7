// Package walker is the single entry point of the workflow engine: it routes typed
// commands to the engine operations and runs each of them atomically.
package walker

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/insights"
	"github.com/trezcool/elimu/core/learningpath"
	"github.com/trezcool/elimu/core/lesson"
	"github.com/trezcool/elimu/core/observation"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
)

var (
	ErrInactiveActor = errors.WithMessage(core.ErrUnauthorized, "account is deactivated")
	ErrNotAdmin      = errors.WithMessage(core.ErrUnauthorized, "only admins can do this")
	ErrNotSupervisor = errors.WithMessage(core.ErrUnauthorized, "only supervisors and admins can do this")
	ErrForbiddenRole = errors.WithMessage(core.ErrUnauthorized, "role not allowed to do this")
)

type (
	// Services are the engine operations commands are routed to.
	Services struct {
		Appraisals   *appraisal.Engine
		Students     *student.Service
		Insights     *insights.Aggregator
		Paths        *learningpath.Generator
		Staff        *staff.Service
		Observations *observation.Service
		Lessons      *lesson.Service
	}

	Dispatcher struct {
		svc     Services
		tx      core.Transactor
		mailSvc core.EmailService
		logger  core.Logger
		wg      sync.WaitGroup
	}
)

func NewDispatcher(svc Services, tx core.Transactor, mailSvc core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, tx: tx, mailSvc: mailSvc, logger: logger}
}

// Future is the pending result of a dispatched command.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
}

// Done is closed once the command has completed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the command completes or ctx is done.
// Giving up on a Future does not cancel the command.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await waits for f and asserts its result to R.
func Await[R any](ctx context.Context, f *Future) (R, error) {
	var zero R
	res, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	r, ok := res.(R)
	if !ok {
		return zero, errors.Errorf("walker: result is %T", res)
	}
	return r, nil
}

// Dispatch runs cmd asynchronously. Commands always run to completion:
// cancelling ctx does not abort them.
func (d *Dispatcher) Dispatch(ctx context.Context, actor staff.Member, cmd Command) *Future {
	f := &Future{done: make(chan struct{})}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(f.done)
		f.result, f.err = d.Execute(ctx, actor, cmd)
	}()
	return f
}

// Wait blocks until every dispatched command has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Execute runs cmd and returns its result. Either all of its effects are committed or none is;
// notifications are only sent after the commit.
func (d *Dispatcher) Execute(ctx context.Context, actor staff.Member, cmd Command) (interface{}, error) {
	if !actor.IsActive {
		return nil, ErrInactiveActor
	}
	if cmd == nil {
		return nil, ErrUnknownCommand
	}
	if callsUpstream(cmd) {
		// the content service must not be called while holding a transaction open
		return d.handle(ctx, actor, cmd)
	}

	ctx, queue := core.WithMailQueue(ctx)
	var result interface{}
	err := d.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = d.handle(ctx, actor, cmd)
		return err
	})
	if err != nil {
		queue.Discard()
		d.logger.Debug("walker command failed", err, map[string]interface{}{"command": cmd.Name()}, actor)
		return nil, err
	}
	queue.Flush(d.mailSvc)
	return result, nil
}

func callsUpstream(cmd Command) bool {
	switch cmd.(type) {
	case GenerateLesson, LabAssistant:
		return true
	}
	return false
}

func (d *Dispatcher) handle(ctx context.Context, actor staff.Member, cmd Command) (interface{}, error) {
	switch c := cmd.(type) {
	// appraisal
	case InitAppraisal:
		return d.svc.Appraisals.Init(ctx, actor, c.InitRequest)
	case UpdateStandard:
		return d.svc.Appraisals.UpdateStandard(ctx, actor, c.UpdateStandardRequest)
	case SubmitAppraisal:
		return d.svc.Appraisals.Submit(ctx, actor, c.SubmitRequest)
	case SupervisorReview:
		return d.svc.Appraisals.SupervisorReview(ctx, actor, c.ReviewRequest)
	case ManageTPD:
		return d.svc.Appraisals.ManageTPD(ctx, actor, c.TPDRequest)
	case GetAppraisal:
		return d.svc.Appraisals.Get(ctx, actor, c.TeacherID)
	case GetAppraisals:
		return d.svc.Appraisals.List(ctx, actor)

	// students
	case GetAllStudents:
		return d.svc.Students.QueryAll(ctx)
	case GetClassInsights:
		return d.svc.Insights.ClassInsights(ctx)
	case RecordStudentProgress:
		if err := allow(actor, staff.RoleTeacher, staff.RoleSupervisor, staff.RoleAdmin); err != nil {
			return nil, err
		}
		return d.svc.Students.RecordProgress(ctx, c.ProgressUpdate)
	case ManageStudent:
		return d.manageStudent(ctx, actor, c)
	case TrackProgress:
		return d.svc.Students.TrackProgress(ctx, c.StudentID)

	// graph
	case GenerateLearningPath:
		return d.svc.Paths.Generate(ctx, c.Request)
	case GetLearningPath:
		return d.svc.Paths.Trace(ctx, c.StudentNodeID)
	case AssessSkills:
		return d.svc.Paths.AssessSkills(ctx, c.AssessmentRequest)

	// staff
	case GetStaffList:
		if !actor.HasRole(staff.RoleSupervisor, staff.RoleAdmin) {
			return nil, ErrNotSupervisor
		}
		return d.svc.Staff.Filter(ctx, staff.QueryFilter{Status: c.Status}, core.ParseOrderings(c.Ordering))
	case GetAllUsers:
		if !actor.IsAdmin() {
			return nil, ErrNotAdmin
		}
		return d.svc.Staff.QueryAll(ctx)
	case ManageUser:
		return d.manageUser(ctx, actor, c)
	case RecordObservation:
		return d.svc.Observations.Record(ctx, actor, c.NewObservation)
	case GetObservations:
		return d.svc.Observations.List(ctx, actor, c.TeacherID)

	// lessons
	case GenerateLesson:
		if err := allow(actor, staff.RoleTeacher, staff.RoleSupervisor, staff.RoleAdmin); err != nil {
			return nil, err
		}
		if !actor.IsTeacher() {
			return d.svc.Lessons.Generate(ctx, c.Params)
		}
		// the planned-lessons counter is committed with the lesson
		return d.svc.Lessons.Generate(ctx, c.Params, func(ctx context.Context, _ lesson.Lesson) error {
			_, err := d.svc.Staff.IncrementLessonsPlanned(ctx, actor.ID)
			return errors.Wrap(err, "counting planned lesson")
		})
	case RecommendLessons:
		return d.svc.Lessons.Recommend(ctx, c.RecommendRequest)
	case LabAssistant:
		return d.svc.Lessons.LabAssistant(ctx, c.LabQuery)
	}
	return nil, errors.WithMessage(ErrUnknownCommand, cmd.Name())
}

func allow(actor staff.Member, roles ...staff.Role) error {
	if !actor.HasRole(roles...) {
		return ErrForbiddenRole
	}
	return nil
}

// manageUser returns the accounts list once the change is applied.
func (d *Dispatcher) manageUser(ctx context.Context, actor staff.Member, c ManageUser) ([]staff.Member, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	switch c.Action {
	case "create":
		if _, err := d.svc.Staff.Create(ctx, c.User, actor); err != nil {
			return nil, err
		}
	case "delete":
		if err := d.svc.Staff.Delete(ctx, c.IDs...); err != nil {
			return nil, err
		}
	default:
		return nil, core.NewValidationError(errInvalidAction, core.FieldError{Field: "action", Error: errInvalidAction.Error()})
	}
	return d.svc.Staff.QueryAll(ctx)
}

// manageStudent returns the students list once the change is applied.
func (d *Dispatcher) manageStudent(ctx context.Context, actor staff.Member, c ManageStudent) ([]student.Student, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	switch c.Action {
	case "add":
		if _, err := d.svc.Students.Add(ctx, c.Student); err != nil {
			return nil, err
		}
	case "delete":
		if err := d.svc.Students.Delete(ctx, c.IDs...); err != nil {
			return nil, err
		}
	default:
		return nil, core.NewValidationError(errInvalidAction, core.FieldError{Field: "action", Error: errInvalidAction.Error()})
	}
	return d.svc.Students.QueryAll(ctx)
}
