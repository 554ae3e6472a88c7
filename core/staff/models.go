package staff

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/elimu/core"
)

type Role string

// Roles
const (
	RoleTeacher    Role = "teacher"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

var (
	AllRoles = []Role{RoleTeacher, RoleSupervisor, RoleAdmin}

	rolePriorities = map[Role]int{
		RoleAdmin:      30,
		RoleSupervisor: 20,
		RoleTeacher:    10,
	}

	Roles = []RoleInfo{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Supervisor", Value: RoleSupervisor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role Role) int {
	return rolePriorities[role]
}

func (r Role) IsValid() bool {
	_, ok := rolePriorities[r]
	return ok
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type PromotionStatus string

// Promotion statuses
const (
	StatusPromotable         PromotionStatus = "Promotable"
	StatusGoodStanding       PromotionStatus = "Good Standing"
	StatusInterventionNeeded PromotionStatus = "Intervention Needed"
	StatusNew                PromotionStatus = "New"
)

// promotableScore is the minimum appraisal score for StatusPromotable.
const promotableScore = 80

// PromotionStatusFor classifies an appraisal score.
// A reviewed appraisal is never classified as StatusInterventionNeeded; that status is only set by hand.
func PromotionStatusFor(score int) PromotionStatus {
	if score >= promotableScore {
		return StatusPromotable
	}
	return StatusGoodStanding
}

func (s PromotionStatus) IsValid() bool {
	switch s {
	case StatusPromotable, StatusGoodStanding, StatusInterventionNeeded, StatusNew:
		return true
	}
	return false
}

// Member is a staff account: a teacher, a supervisor or an admin.
type Member struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            Role            `json:"role"`
	RegistryNumber  string          `json:"registry_number"`
	Department      string          `json:"department"`
	IsActive        bool            `json:"is_active"`
	LessonsPlanned  int             `json:"lessons_planned"`
	LessonsTaught   int             `json:"lessons_taught"`
	AppraisalScore  int             `json:"appraisal_score"`
	PromotionStatus PromotionStatus `json:"promotion_status"`
	Observations    int             `json:"observations"`
	Gaps            int             `json:"gaps"`
	PasswordHash    []byte          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"` // UTC
	UpdatedAt       time.Time       `json:"updated_at"` // UTC
	LastLogin       time.Time       `json:"last_login"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

// HasRole reports whether the member holds one of roles.
func (m Member) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if m.Role == role {
			return true
		}
	}
	return false
}

func (m Member) IsAdmin() bool      { return m.Role == RoleAdmin }
func (m Member) IsSupervisor() bool { return m.Role == RoleSupervisor }
func (m Member) IsTeacher() bool    { return m.Role == RoleTeacher }

// NewMember contains information needed to create a new Member.
type NewMember struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,staffrole"`
	RegistryNumber  string `json:"registry_number"`
	Department      string `json:"department"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (nm *NewMember) clean() {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Role = Role(core.CleanString(string(nm.Role), true /* lower */))
	nm.RegistryNumber = core.CleanString(nm.RegistryNumber)
	nm.Department = core.CleanString(nm.Department)
}

type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

type QueryFilter struct {
	Search   string          `query:"search"`
	Roles    []Role          `query:"role"`
	Status   PromotionStatus `query:"status"`
	IsActive *bool           `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Status == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Status = PromotionStatus(core.CleanString(string(qf.Status)))
}
