package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"afyacal/internal/triage"
)

// GeminiConfig configures the Gemini client. BaseURL and HTTPClient are only
// needed to point the client somewhere other than the public endpoint.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient runs both the triage and the summary calls against the
// Gemini API. One client is shared by the whole process.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *logrus.Logger) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-3-flash-preview"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// PerformTriage asks for a JSON assessment constrained to the triage schema.
func (c *GeminiClient) PerformTriage(ctx context.Context, report triage.SymptomReport) (triage.Result, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   triageSchema(),
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(triage.BuildPrompt(report)), cfg)
	if err != nil {
		return triage.Result{}, fmt.Errorf("gemini generate content: %w", err)
	}

	return triage.ParseResult(res.Text())
}

// GenerateSummary produces a scribe-style summary of a flattened transcript.
func (c *GeminiClient) GenerateSummary(ctx context.Context, transcript string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(summarySystemInstruction, genai.RoleUser),
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(buildSummaryPrompt(transcript)), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		c.logger.WithField("Function", "GenerateSummary").Warn("Gemini returned empty summary text")
		return SummaryUnavailable, nil
	}
	return text, nil
}
