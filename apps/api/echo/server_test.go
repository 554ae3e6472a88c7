package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/appraisal"
	"github.com/trezcool/elimu/core/graph"
	"github.com/trezcool/elimu/core/insights"
	"github.com/trezcool/elimu/core/learningpath"
	"github.com/trezcool/elimu/core/lesson"
	"github.com/trezcool/elimu/core/observation"
	"github.com/trezcool/elimu/core/staff"
	"github.com/trezcool/elimu/core/student"
	"github.com/trezcool/elimu/core/walker"
	contentsvc "github.com/trezcool/elimu/services/content"
	emailsvc "github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/storage/docstore"
	"github.com/trezcool/elimu/storage/kv/memkv"
	"github.com/trezcool/elimu/storage/seed"
)

type failingContent struct{ lesson.ContentService }

func (failingContent) GenerateLesson(context.Context, lesson.Params) (lesson.Content, error) {
	return lesson.Content{}, core.ErrUpstreamUnavailable
}

type env struct {
	server   *echoapi.Server
	staffSvc *staff.Service
	password string
}

func setup(t *testing.T, content lesson.ContentService) env {
	t.Helper()
	ctx := context.Background()

	conf := &core.Config{
		AppName:                   "Elimu",
		TestMode:                  true,
		SecretKey:                 "test-secret",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			DisableReqLogs:            true,
		},
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	staff.RegisterValidators(validate, translator)

	docs := docstore.New(memkv.New())
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := core.NewNopLogger()

	staffRepo := docstore.NewStaffRepository(docs)
	studentRepo := docstore.NewStudentRepository(docs)
	sessionRepo := docstore.NewSessionRepository(docs)
	_, err := seed.NewSeeder(docs, staffRepo, studentRepo, sessionRepo, logger).Seed(ctx, false)
	require.NoError(t, err)

	graphRepo := docstore.NewGraphRepository(docs)
	staffSvc := staff.NewService(staffRepo, docs, mailSvc, validate, translator, conf)
	studentSvc := student.NewService(studentRepo, docs, validate, translator)
	lessonSvc := lesson.NewService(docstore.NewLessonRepository(docs), docs, content, logger, validate, translator)
	d := walker.NewDispatcher(walker.Services{
		Appraisals:   appraisal.NewEngine(sessionRepo, staffSvc, docs, mailSvc, validate, translator),
		Students:     studentSvc,
		Insights:     insights.NewAggregator(studentSvc),
		Paths:        learningpath.NewGenerator(graph.NewStore(graphRepo), studentSvc, validate, translator),
		Staff:        staffSvc,
		Observations: observation.NewService(docstore.NewObservationRepository(docs), staffSvc, docs, validate, translator),
		Lessons:      lessonSvc,
	}, docs, mailSvc, logger)

	f, err := seed.Load()
	require.NoError(t, err)

	return env{
		server: echoapi.NewServer(echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			StaffSvc:   staffSvc,
			Dispatcher: d,
			Store:      docs,
			Content:    lessonSvc,
			Graph:      graphRepo,
			Validate:   validate,
			Translator: translator,
		}),
		staffSvc: staffSvc,
		password: f.Password,
	}
}

func (e env) token(t *testing.T, id string) string {
	t.Helper()
	m, err := e.staffSvc.GetByID(context.Background(), id)
	require.NoError(t, err)
	token, err := e.server.GenerateToken(m)
	require.NoError(t, err)
	return token
}

func (e env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

type walkerResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestLogin(t *testing.T) {
	e := setup(t, contentsvc.NewOfflineService())

	tests := []struct {
		name     string
		body     echoapi.LoginRequest
		wantCode int
	}{
		{name: "missing fields", body: echoapi.LoginRequest{}, wantCode: http.StatusBadRequest},
		{name: "wrong password", body: echoapi.LoginRequest{Email: "jane.doe@elimu.local", Password: "nope"}, wantCode: http.StatusBadRequest},
		{name: "unknown email", body: echoapi.LoginRequest{Email: "who@elimu.local", Password: e.password}, wantCode: http.StatusBadRequest},
		{name: "ok", body: echoapi.LoginRequest{Email: " Jane.Doe@elimu.local ", Password: e.password}, wantCode: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/v1/auth/login", "", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantCode == http.StatusOK {
				var res echoapi.LoginResponse
				decode(t, rec, &res)
				assert.NotEmpty(t, res.Token)

				rec = e.do(t, http.MethodPost, "/v1/auth/token-refresh", res.Token, nil)
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestWalkerAPI(t *testing.T) {
	e := setup(t, contentsvc.NewOfflineService())
	teacher, supervisor := e.token(t, "user-1"), e.token(t, "user-5")

	t.Run("auth required", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/get_appraisal", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown command", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/launch_rockets", teacher, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad payload", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/update_standard", teacher, "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("seeded session", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/init_appraisal", teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res walkerResponse
		decode(t, rec, &res)
		assert.True(t, res.Success)
		var sess appraisal.Session
		require.NoError(t, json.Unmarshal(res.Data, &sess))
		assert.Equal(t, "user-1", sess.TeacherID)
		assert.Equal(t, appraisal.StatusDraft, sess.Status)
	})

	t.Run("review by a teacher is forbidden", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/supervisor_review", teacher, appraisal.ReviewRequest{
			TeacherID: "user-1",
			Reviews:   []appraisal.Review{{StandardID: 1, Rating: 4}},
		})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	t.Run("review of a draft is a conflict", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/supervisor_review", supervisor, appraisal.ReviewRequest{
			TeacherID: "user-1",
			Reviews:   []appraisal.Review{{StandardID: 1, Rating: 4}},
		})
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("class insights", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/walker/get_class_insights", teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res walkerResponse
		decode(t, rec, &res)
		var ci insights.ClassInsights
		require.NoError(t, json.Unmarshal(res.Data, &ci))
		require.NotEmpty(t, ci.CommonGaps)
		assert.Equal(t, "Algebraic Expressions", ci.CommonGaps[0].Gap)
		assert.Equal(t, 3, ci.CommonGaps[0].Count)
		assert.Equal(t, 100, ci.CommonGaps[0].Percentage)
	})

	t.Run("list names", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/walker", teacher, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var names []string
		decode(t, rec, &names)
		assert.Equal(t, walker.Names(), names)
	})
}

func TestWalkerAPI_Degraded(t *testing.T) {
	e := setup(t, failingContent{contentsvc.NewOfflineService()})

	rec := e.do(t, http.MethodPost, "/v1/walker/generate_lesson", e.token(t, "user-1"), lesson.Params{
		Grade: "Grade 7", Subject: "Mathematics", Strand: "Algebra", SubStrand: "Linear equations",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res walkerResponse
	decode(t, rec, &res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.NotEmpty(t, res.Data)
}

func TestStaffAPI(t *testing.T) {
	e := setup(t, contentsvc.NewOfflineService())

	rec := e.do(t, http.MethodGet, "/v1/staff", e.token(t, "user-1"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/staff?role=teacher&ordering=-appraisal_score", e.token(t, "user-5"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var members []staff.Member
	decode(t, rec, &members)
	require.Len(t, members, 4)
	assert.Equal(t, "user-3", members[0].ID) // 95
	assert.Equal(t, "user-4", members[3].ID) // 45

	rec = e.do(t, http.MethodGet, "/v1/staff?status=Promotable&ordering=name", e.token(t, "user-6"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &members)
	require.Len(t, members, 2)
	assert.Equal(t, "Jane Doe", members[0].Name)
	assert.Equal(t, "Sarah Connor", members[1].Name)
}

func TestHealth(t *testing.T) {
	e := setup(t, contentsvc.NewOfflineService())

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res echoapi.HealthResponse
	decode(t, rec, &res)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "ok", res.Store)
	assert.Equal(t, "ok", res.Content)
	assert.Equal(t, 0, res.GraphNodes)
}
