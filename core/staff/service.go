package staff

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrNotFound             = errors.WithMessage(core.ErrNotFound, "staff member")
	ErrEmailExists          = errors.New("a staff member with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrRoleTooHigh          = errors.New("not enough rights to set this role")
)

type (
	// Repository persists staff members. Implementations join the transaction carried by ctx, if any.
	Repository interface {
		CreateMember(ctx context.Context, m Member) (Member, error)
		SaveMember(ctx context.Context, m Member) (Member, error)
		QueryAllMembers(ctx context.Context) ([]Member, error)
		GetMemberByID(ctx context.Context, id string) (Member, error)
		GetMemberByEmail(ctx context.Context, email string) (Member, error)
		DeleteMembersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo       Repository
		tx         core.Transactor
		mailSvc    core.EmailService
		validate   *validator.Validate
		translator ut.Translator
		tokens     *tokenGenerator
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	mailSvc core.EmailService,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		mailSvc:    mailSvc,
		validate:   validate,
		translator: translator,
		tokens:     newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) validateStruct(s interface{}) error {
	return core.TranslateValidationErrors(svc.validate.Struct(s), svc.translator)
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclIDs ...string) error {
	m, err := svc.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding staff member by email")
	}
	for _, id := range exclIDs {
		if m.ID == id {
			return nil
		}
	}
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

// Create validates nm and stores a new active Member.
// If creator is given, they cannot create a member with a role above their own.
func (svc *Service) Create(ctx context.Context, nm NewMember, creator ...Member) (Member, error) {
	nm.clean()
	if err := svc.validateStruct(nm); err != nil {
		return Member{}, err
	}
	if len(creator) > 0 && RolePriority(nm.Role) > RolePriority(creator[0].Role) {
		return Member{}, core.NewValidationError(ErrRoleTooHigh, core.FieldError{Field: "role", Error: ErrRoleTooHigh.Error()})
	}

	var created Member
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkUniqueness(ctx, nm.Email); err != nil {
			return err
		}
		now := time.Now().UTC()
		m := Member{
			ID:              uuid.New().String(),
			Name:            nm.Name,
			Email:           nm.Email,
			Role:            nm.Role,
			RegistryNumber:  nm.RegistryNumber,
			Department:      nm.Department,
			IsActive:        true,
			PromotionStatus: StatusNew,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if nm.Password != "" {
			if err := m.SetPassword(nm.Password); err != nil {
				return errors.Wrap(err, "hashing password")
			}
		}
		var err error
		created, err = svc.repo.CreateMember(ctx, m)
		return err
	})
	return created, err
}

func (svc *Service) QueryAll(ctx context.Context) ([]Member, error) {
	return svc.repo.QueryAllMembers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMemberByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return svc.repo.GetMemberByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Filter applies AND operation on available QueryFilter fields, then sorts by orderings.
// QueryFilter.Search does a case-insensitive match on one of name, email, registry number or department.
func (svc *Service) Filter(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]Member, error) {
	all, err := svc.repo.QueryAllMembers(ctx)
	if err != nil {
		return nil, err
	}
	filter.Clean()
	members := make([]Member, 0, len(all))
	for _, m := range all {
		if filter.matches(m) {
			members = append(members, m)
		}
	}
	sortMembers(members, orderings)
	return members, nil
}

func (qf *QueryFilter) matches(m Member) bool {
	if qf.Search != "" {
		found := false
		for _, attr := range []string{m.Name, m.Email, m.RegistryNumber, m.Department} {
			if strings.Contains(strings.ToLower(attr), qf.Search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(qf.Roles) > 0 && !m.HasRole(qf.Roles...) {
		return false
	}
	if qf.Status != "" && !strings.EqualFold(string(m.PromotionStatus), string(qf.Status)) {
		return false
	}
	if qf.IsActive != nil && m.IsActive != *qf.IsActive {
		return false
	}
	return true
}

// orderingFields maps the ordering names accepted by Filter to a comparison (a < b).
var orderingFields = map[string]func(a, b Member) bool{
	"name":            func(a, b Member) bool { return a.Name < b.Name },
	"email":           func(a, b Member) bool { return a.Email < b.Email },
	"department":      func(a, b Member) bool { return a.Department < b.Department },
	"appraisal_score": func(a, b Member) bool { return a.AppraisalScore < b.AppraisalScore },
	"lessons_planned": func(a, b Member) bool { return a.LessonsPlanned < b.LessonsPlanned },
	"lessons_taught":  func(a, b Member) bool { return a.LessonsTaught < b.LessonsTaught },
	"created_at":      func(a, b Member) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

// sortMembers sorts in place; unknown ordering fields are ignored.
func sortMembers(members []Member, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		return
	}
	sort.SliceStable(members, func(i, j int) bool {
		for _, ord := range orderings {
			less, ok := orderingFields[ord.Field]
			if !ok {
				continue
			}
			a, b := members[i], members[j]
			if !ord.Ascending {
				a, b = b, a
			}
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return false
	})
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Member, error) {
	m, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return Member{}, ErrAuthenticationFailed
		}
		return Member{}, errors.Wrap(err, "finding staff member by email")
	}
	if len(m.PasswordHash) == 0 || m.CheckPassword(pwd) != nil {
		return Member{}, ErrAuthenticationFailed
	}
	if !m.IsActive {
		return Member{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, m.ID)
}

func (svc *Service) SetLastLogin(ctx context.Context, id string) (Member, error) {
	return svc.update(ctx, id, func(m *Member) error {
		m.LastLogin = time.Now().UTC()
		return nil
	})
}

// ApplyAppraisal writes a reviewed appraisal back to the member: score, promotion status and open gaps.
func (svc *Service) ApplyAppraisal(ctx context.Context, id string, score, openGaps int) (Member, error) {
	return svc.update(ctx, id, func(m *Member) error {
		m.AppraisalScore = score
		m.PromotionStatus = PromotionStatusFor(score)
		m.Gaps = openGaps
		return nil
	})
}

func (svc *Service) IncrementObservations(ctx context.Context, id string) (Member, error) {
	return svc.update(ctx, id, func(m *Member) error {
		m.Observations++
		return nil
	})
}

func (svc *Service) IncrementLessonsPlanned(ctx context.Context, id string) (Member, error) {
	return svc.update(ctx, id, func(m *Member) error {
		m.LessonsPlanned++
		return nil
	})
}

// SetPassword sets a new password after checking it against the password policy.
func (svc *Service) SetPassword(ctx context.Context, id, pwd string) (Member, error) {
	return svc.update(ctx, id, func(m *Member) error {
		if tag := passwordPolicyViolation(pwd, m.Name, m.Email, m.RegistryNumber); tag != "" {
			return core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordPolicyText(tag)})
		}
		return errors.Wrap(m.SetPassword(pwd), "hashing password")
	})
}

func (svc *Service) update(ctx context.Context, id string, fn func(m *Member) error) (Member, error) {
	var updated Member
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := svc.repo.GetMemberByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&m); err != nil {
			return err
		}
		m.UpdatedAt = time.Now().UTC()
		updated, err = svc.repo.SaveMember(ctx, m)
		return err
	})
	return updated, err
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteMembersByID(ctx, ids...)
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	m, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(m)
}

func (svc *Service) sendPasswordResetMail(m Member) error {
	token, err := svc.tokens.makeToken(m)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: m.Name, Address: m.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  m.Name,
			"UID":   EncodeUID(m),
			"Token": token,
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetPassword) error {
	if err := svc.validateStruct(data); err != nil {
		return err
	}
	invalid := core.NewValidationError(errInvalidToken)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	m, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid
		}
		return errors.Wrap(err, "finding staff member by ID")
	}
	if err := svc.tokens.verifyToken(m, data.Token); err != nil {
		return core.NewValidationError(err)
	}
	_, err = svc.SetPassword(ctx, m.ID, data.Password)
	return err
}

func passwordPolicyText(tag string) string {
	switch tag {
	case pwdMinLenTag:
		return pwdMinLenText
	case pwdNoSpaceTag:
		return pwdNoSpaceText
	case pwdNotAllNumTag:
		return pwdNotAllNumText
	case pwdComplexityTag:
		return pwdComplexityText
	case pwdAttrSimTag:
		return pwdAttrSimText
	}
	return tag
}
