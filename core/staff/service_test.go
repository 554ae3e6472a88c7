package staff_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/storage/docstore"
	"github.com/trezcool/elimu/storage/kv/memkv"
)

const pwd = "Str0ng-Passw0rd!"

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(msgs ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
}

func (m *mailRecorder) last() *core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func newService(t *testing.T) (*staff.Service, *mailRecorder) {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	staff.RegisterValidators(validate, translator)

	docs := docstore.New(memkv.New())
	mail := new(mailRecorder)
	conf := &core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 24 * time.Hour}
	return staff.NewService(docstore.NewStaffRepository(docs), docs, mail, validate, translator, conf), mail
}

func create(t *testing.T, svc *staff.Service, name, email string, role staff.Role, creator ...staff.Member) staff.Member {
	t.Helper()
	m, err := svc.Create(context.Background(), staff.NewMember{
		Name: name, Email: email, Role: role, Password: pwd, PasswordConfirm: pwd,
	}, creator...)
	require.NoError(t, err)
	return m
}

func TestService_Create(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	m := create(t, svc, "  Jane Doe ", "Jane.Doe@Elimu.local", "Teacher")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Jane Doe", m.Name)
	assert.Equal(t, "jane.doe@elimu.local", m.Email)
	assert.Equal(t, staff.RoleTeacher, m.Role)
	assert.True(t, m.IsActive)
	assert.Equal(t, staff.StatusNew, m.PromotionStatus)
	assert.NoError(t, m.CheckPassword(pwd))

	sup := create(t, svc, "Grace Wanjiru", "grace@elimu.local", staff.RoleSupervisor)

	tests := []struct {
		name    string
		nm      staff.NewMember
		creator []staff.Member
		wantErr error
	}{
		{name: "missing name", nm: staff.NewMember{Email: "x@elimu.local", Role: staff.RoleTeacher}},
		{name: "bad email", nm: staff.NewMember{Name: "X", Email: "x", Role: staff.RoleTeacher}},
		{name: "bad role", nm: staff.NewMember{Name: "X", Email: "x@elimu.local", Role: "janitor"}},
		{name: "weak password", nm: staff.NewMember{Name: "X", Email: "x@elimu.local", Role: staff.RoleTeacher, Password: "password", PasswordConfirm: "password"}},
		{name: "password mismatch", nm: staff.NewMember{Name: "X", Email: "x@elimu.local", Role: staff.RoleTeacher, Password: pwd, PasswordConfirm: pwd + "?"}},
		{name: "duplicate email", nm: staff.NewMember{Name: "X", Email: "JANE.DOE@elimu.local", Role: staff.RoleTeacher}, wantErr: staff.ErrEmailExists},
		{name: "role above creator", nm: staff.NewMember{Name: "X", Email: "x@elimu.local", Role: staff.RoleAdmin}, creator: []staff.Member{sup}, wantErr: staff.ErrRoleTooHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nm, tt.creator...)
			require.True(t, core.IsValidationFailure(err), "unexpected error: %v", err)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err).(*core.ValidationError).Err)
			}
		})
	}

	// supervisors can create teachers
	create(t, svc, "John Smith", "john@elimu.local", staff.RoleTeacher, sup)
	all, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_Filter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	jane := create(t, svc, "Jane Doe", "jane@elimu.local", staff.RoleTeacher)
	john := create(t, svc, "John Smith", "john@elimu.local", staff.RoleTeacher)
	michael := create(t, svc, "Michael Kamau", "michael@elimu.local", staff.RoleTeacher)
	create(t, svc, "Grace Wanjiru", "grace@elimu.local", staff.RoleSupervisor)

	_, err := svc.ApplyAppraisal(ctx, jane.ID, 88, 0)
	require.NoError(t, err)
	_, err = svc.ApplyAppraisal(ctx, john.ID, 72, 2)
	require.NoError(t, err)
	_, err = svc.ApplyAppraisal(ctx, michael.ID, 95, 1)
	require.NoError(t, err)

	names := func(ms []staff.Member) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.Name)
		}
		return out
	}
	inactive := false

	tests := []struct {
		name      string
		filter    staff.QueryFilter
		orderings string
		want      []string
	}{
		{name: "all by name", orderings: "name", want: []string{"Grace Wanjiru", "Jane Doe", "John Smith", "Michael Kamau"}},
		{name: "teachers by score", filter: staff.QueryFilter{Roles: []staff.Role{staff.RoleTeacher}}, orderings: "-appraisal_score", want: []string{"Michael Kamau", "Jane Doe", "John Smith"}},
		{name: "search", filter: staff.QueryFilter{Search: "  JO "}, want: []string{"John Smith"}},
		{name: "status", filter: staff.QueryFilter{Status: " promotable "}, orderings: "-name", want: []string{"Michael Kamau", "Jane Doe"}},
		{name: "inactive", filter: staff.QueryFilter{IsActive: &inactive}, want: []string{}},
		{name: "unknown ordering ignored", filter: staff.QueryFilter{Search: "j"}, orderings: "shoe_size,name", want: []string{"Jane Doe", "John Smith"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := svc.Filter(ctx, tt.filter, core.ParseOrderings(tt.orderings))
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(ms))
		})
	}

	m, err := svc.GetByID(ctx, john.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.StatusGoodStanding, m.PromotionStatus)
	assert.Equal(t, 2, m.Gaps)
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	jane := create(t, svc, "Jane Doe", "jane@elimu.local", staff.RoleTeacher)

	m, err := svc.Authenticate(ctx, " JANE@elimu.local", pwd)
	require.NoError(t, err)
	assert.Equal(t, jane.ID, m.ID)
	assert.False(t, m.LastLogin.IsZero())

	_, err = svc.Authenticate(ctx, "jane@elimu.local", "wrong")
	assert.Equal(t, staff.ErrAuthenticationFailed, err)
	_, err = svc.Authenticate(ctx, "nobody@elimu.local", pwd)
	assert.Equal(t, staff.ErrAuthenticationFailed, err)

	_, err = svc.Create(ctx, staff.NewMember{Name: "No Password", Email: "nopwd@elimu.local", Role: staff.RoleTeacher})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "nopwd@elimu.local", "")
	assert.Equal(t, staff.ErrAuthenticationFailed, err)
}

func TestService_Counters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	jane := create(t, svc, "Jane Doe", "jane@elimu.local", staff.RoleTeacher)

	_, err := svc.IncrementObservations(ctx, jane.ID)
	require.NoError(t, err)
	_, err = svc.IncrementLessonsPlanned(ctx, jane.ID)
	require.NoError(t, err)
	m, err := svc.IncrementLessonsPlanned(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Observations)
	assert.Equal(t, 2, m.LessonsPlanned)

	_, err = svc.IncrementObservations(ctx, "ghost")
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, jane.ID))
	_, err = svc.GetByID(ctx, jane.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_PasswordReset(t *testing.T) {
	svc, mail := newService(t)
	ctx := context.Background()
	jane := create(t, svc, "Jane Doe", "jane@elimu.local", staff.RoleTeacher)

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "nobody@elimu.local")))
	require.NoError(t, svc.RequestPasswordReset(ctx, "jane@elimu.local"))

	msg := mail.last()
	require.NotNil(t, msg)
	assert.Equal(t, "password_reset", msg.TemplateName)
	data := msg.TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, staff.EncodeUID(jane), uid)

	newPwd := "N3w-Passw0rd!"
	tests := []struct {
		name string
		data staff.ResetPassword
	}{
		{name: "missing fields", data: staff.ResetPassword{UID: uid}},
		{name: "mismatch", data: staff.ResetPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: "other"}},
		{name: "bad uid", data: staff.ResetPassword{UID: "%%%", Token: token, Password: newPwd, PasswordConfirm: newPwd}},
		{name: "unknown uid", data: staff.ResetPassword{UID: staff.EncodeUID(staff.Member{ID: "ghost"}), Token: token, Password: newPwd, PasswordConfirm: newPwd}},
		{name: "bad token", data: staff.ResetPassword{UID: uid, Token: "HE4TS-sigsig-sig", Password: newPwd, PasswordConfirm: newPwd}},
		{name: "weak password", data: staff.ResetPassword{UID: uid, Token: token, Password: "weakweak", PasswordConfirm: "weakweak"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ResetPassword(ctx, tt.data)
			assert.True(t, core.IsValidationFailure(err), "unexpected error: %v", err)
		})
	}

	require.NoError(t, svc.ResetPassword(ctx, staff.ResetPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}))
	m, err := svc.Authenticate(ctx, "jane@elimu.local", newPwd)
	require.NoError(t, err)

	// the token is bound to the old password hash
	err = svc.ResetPassword(ctx, staff.ResetPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: pwd})
	assert.True(t, core.IsValidationFailure(err))

	_, err = svc.SetPassword(ctx, m.ID, "Jane.Doe1!")
	assert.True(t, core.IsValidationFailure(err), "too similar to the name")
}
