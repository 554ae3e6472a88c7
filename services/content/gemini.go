// Package contentsvc implements the generative content service used by the lesson pipeline.
package contentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/lesson"
)

// ErrUnavailable wraps every failure of the remote service.
var ErrUnavailable = errors.WithMessage(core.ErrUpstreamUnavailable, "content service")

const maxErrorBody = 512

type geminiService struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ lesson.ContentService = (*geminiService)(nil)

// NewGeminiService returns a client of the Gemini generateContent REST API.
func NewGeminiService(conf core.ContentConfig) (lesson.ContentService, error) {
	if strings.TrimSpace(conf.APIKey) == "" {
		return nil, errors.New("content: missing api key")
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &geminiService{
		baseURL:    strings.TrimRight(conf.BaseURL, "/"),
		apiKey:     conf.APIKey,
		model:      conf.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type (
	geminiPart struct {
		Text string `json:"text"`
	}

	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}

	generationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType,omitempty"`
	}

	generateRequest struct {
		Contents         []geminiContent  `json:"contents"`
		GenerationConfig generationConfig `json:"generationConfig"`
	}

	generateResponse struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
)

func (svc *geminiService) endpoint(suffix string) string {
	return fmt.Sprintf("%s/v1beta/models/%s%s?key=%s", svc.baseURL, url.PathEscape(svc.model), suffix, url.QueryEscape(svc.apiKey))
}

func (svc *geminiService) do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}
	if res.StatusCode >= http.StatusBadRequest {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, errors.WithMessagef(ErrUnavailable, "status %d: %s", res.StatusCode, raw)
	}
	return raw, nil
}

// generate sends prompt and returns the text of the first candidate.
func (svc *geminiService) generate(ctx context.Context, prompt string, cfg generationConfig) (string, error) {
	raw, err := svc.do(ctx, http.MethodPost, svc.endpoint(":generateContent"), generateRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return "", err
	}
	var res generateResponse
	if err = json.Unmarshal(raw, &res); err != nil {
		return "", errors.WithMessage(ErrUnavailable, "decoding response: "+err.Error())
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.WithMessage(ErrUnavailable, "empty response")
	}
	var text strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func (svc *geminiService) generateJSON(ctx context.Context, prompt string, temperature float64, out interface{}) error {
	text, err := svc.generate(ctx, prompt, generationConfig{Temperature: temperature, ResponseMimeType: "application/json"})
	if err != nil {
		return err
	}
	if err = json.Unmarshal([]byte(text), out); err != nil {
		return errors.WithMessage(ErrUnavailable, "malformed document: "+err.Error())
	}
	return nil
}

func (svc *geminiService) GenerateLesson(ctx context.Context, p lesson.Params) (lesson.Content, error) {
	var doc lessonDocument
	if err := svc.generateJSON(ctx, lessonPrompt(p), 0.7, &doc); err != nil {
		return lesson.Content{}, err
	}
	return doc.content(), nil
}

func (svc *geminiService) AnalyzeLesson(ctx context.Context, l lesson.Lesson) (lesson.Analysis, error) {
	prompt, err := analysisPrompt(l)
	if err != nil {
		return lesson.Analysis{}, err
	}
	a := lesson.Analysis{DifficultyScore: .5, CBCCompliance: .5}
	if err = svc.generateJSON(ctx, prompt, 0.3, &a); err != nil {
		return lesson.Analysis{}, err
	}
	return a, nil
}

func (svc *geminiService) Ask(ctx context.Context, query string) (string, error) {
	return svc.generate(ctx, labPrompt(query), generationConfig{Temperature: 0.7})
}

func (svc *geminiService) Ping(ctx context.Context) error {
	_, err := svc.do(ctx, http.MethodGet, svc.endpoint(""), nil)
	return err
}
