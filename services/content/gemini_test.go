package contentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/lesson"
)

func newTestGemini(t *testing.T, h http.HandlerFunc) lesson.ContentService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := NewGeminiService(core.ContentConfig{
		APIKey:  "secret",
		BaseURL: srv.URL,
		Model:   "gemini-test",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return svc
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]string{"text": text}},
				},
			},
		},
	})
}

func TestNewGeminiService_RequiresKey(t *testing.T) {
	_, err := NewGeminiService(core.ContentConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestGemini_GenerateLesson(t *testing.T) {
	svc := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)
		require.Len(t, body.Contents, 1)
		assert.Contains(t, body.Contents[0].Parts[0].Text, "Sub-Strand: Fractions")

		reply(w, `{
			"topic": "Adding fractions",
			"keyInquiryQuestions": ["Where do we share things equally?"],
			"coreCompetencies": ["Critical thinking"],
			"values": ["Unity"],
			"sections": [{"title": "Introduction", "duration": "5 minutes", "teacherActivity": "Ask", "studentActivity": "Answer"}]
		}`)
	})

	c, err := svc.GenerateLesson(context.Background(), lesson.Params{
		Grade: "4", Subject: "Mathematics", Strand: "Numbers", SubStrand: "Fractions",
	})
	require.NoError(t, err)
	assert.Equal(t, "Adding fractions", c.Topic)
	assert.Equal(t, []string{}, c.Materials)
	require.Len(t, c.Sections, 1)
	assert.Equal(t, "Ask", c.Sections[0].TeacherActivity)
}

func TestGemini_AnalyzeLesson(t *testing.T) {
	svc := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"difficulty_score": 0.9, "cbc_compliance": 0.8, "engagement_level": 0.7,
			"picrat_level": "Creative-Transformation", "recommendations": ["More group work"]}`)
	})

	a, err := svc.AnalyzeLesson(context.Background(), lesson.Lesson{Subject: "Science"})
	require.NoError(t, err)
	assert.Equal(t, .9, a.DifficultyScore)
	assert.Equal(t, .8, a.CBCCompliance)
	assert.Equal(t, "Creative-Transformation", a.PicratLevel)
	assert.Equal(t, []string{"More group work"}, a.Recommendations)
}

func TestGemini_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates": []}`))
			},
		},
		{
			name: "malformed document",
			handler: func(w http.ResponseWriter, r *http.Request) {
				reply(w, "this is not json")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestGemini(t, tc.handler)
			_, err := svc.GenerateLesson(context.Background(), lesson.Params{})
			assert.True(t, core.IsUpstreamUnavailable(err), "got %v", err)
		})
	}
}

func TestGemini_AskAndPing(t *testing.T) {
	svc := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, "/v1beta/models/gemini-test", r.URL.Path)
			_, _ = w.Write([]byte(`{"name": "models/gemini-test"}`))
			return
		}
		reply(w, "Plants make food from sunlight.")
	})

	text, err := svc.Ask(context.Background(), "What is photosynthesis?")
	require.NoError(t, err)
	assert.Equal(t, "Plants make food from sunlight.", text)
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestOffline(t *testing.T) {
	svc := NewOfflineService()
	ctx := context.Background()

	c, err := svc.GenerateLesson(ctx, lesson.Params{Subject: "Science", SubStrand: "Plants", Resources: "Charts, , Seeds"})
	require.NoError(t, err)
	assert.Equal(t, "Plants", c.Topic)
	assert.Equal(t, []string{"Charts", "Seeds"}, c.Materials)
	assert.Len(t, c.Sections, 3)

	a, err := svc.AnalyzeLesson(ctx, lesson.Lesson{Content: c})
	require.NoError(t, err)
	assert.Equal(t, .8, a.EngagementLevel)
	assert.Len(t, a.Recommendations, 1)

	text, err := svc.Ask(ctx, "why is the sky blue")
	require.NoError(t, err)
	assert.Contains(t, text, `"why is the sky blue"`)
	assert.NoError(t, svc.Ping(ctx))
}
