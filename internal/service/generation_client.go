package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justAlves/estudeai-sub000/internal/config"
)

const (
	questionsEndpoint  = "/v1/generate/questions"
	correctionEndpoint = "/v1/corrections"

	essayCompetencyCount = 5
)

// GeneratedOption is one alternative of a generated question.
type GeneratedOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// GeneratedQuestion is a single question from the generation service,
// options in the order they should be shown.
type GeneratedQuestion struct {
	Statement string            `json:"statement"`
	Options   []GeneratedOption `json:"options"`
}

// GeneratedExam is the structured question-set document.
type GeneratedExam struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
}

// CompetencyScore is one graded competency of an essay correction.
type CompetencyScore struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// CorrectionResult is the structured essay correction document: exactly
// five competency scores with feedback each, a total and an overall
// comment. CorrectEssay rejects documents that do not carry all five.
type CorrectionResult struct {
	Competencies []CompetencyScore `json:"competencies"`
	Total        int               `json:"total"`
	Overall      string            `json:"overall"`
}

// GenerationClient calls the external AI generation service. A malformed
// response is treated as a generation failure; no retries happen here.
type GenerationClient interface {
	GenerateQuestions(ctx context.Context, subject, bank string, count int) (*GeneratedExam, error)
	CorrectEssay(ctx context.Context, content, theme, bank string) (*CorrectionResult, error)
}

type generationClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewGenerationClient creates an HTTP client for the generation service,
// bounded by the configured per-request timeout.
func NewGenerationClient(cfg *config.Config) GenerationClient {
	return &generationClient{
		client: &http.Client{
			Timeout: time.Duration(cfg.GenerationRequestTimeoutSec) * time.Second,
		},
		baseURL: cfg.GenerationBaseURL,
		apiKey:  cfg.GenerationAPIKey,
	}
}

// GenerateQuestions requests a question set for the given subject and bank.
func (c *generationClient) GenerateQuestions(ctx context.Context, subject, bank string, count int) (*GeneratedExam, error) {
	requestBody := map[string]interface{}{
		"subject":        subject,
		"bank":           bank,
		"question_count": count,
	}
	var exam GeneratedExam
	if err := c.post(ctx, questionsEndpoint, requestBody, &exam); err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("generation service returned no questions")
	}
	return &exam, nil
}

// CorrectEssay requests a five-competency correction for the essay.
func (c *generationClient) CorrectEssay(ctx context.Context, content, theme, bank string) (*CorrectionResult, error) {
	requestBody := map[string]interface{}{
		"content": content,
		"theme":   theme,
		"bank":    bank,
	}
	var result CorrectionResult
	if err := c.post(ctx, correctionEndpoint, requestBody, &result); err != nil {
		return nil, err
	}
	if len(result.Competencies) != essayCompetencyCount {
		return nil, fmt.Errorf("correction document has %d competencies, want %d", len(result.Competencies), essayCompetencyCount)
	}
	if result.Overall == "" {
		return nil, fmt.Errorf("correction document is missing the overall comment")
	}
	return &result, nil
}

func (c *generationClient) post(ctx context.Context, endpoint string, requestBody, out interface{}) error {
	bodyJSON, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return fmt.Errorf("generation service error: %s", errorResp.Error.Message)
		}
		return fmt.Errorf("generation service error: HTTP %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse generation output: %w", err)
	}
	return nil
}
