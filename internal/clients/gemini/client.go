// Package gemini provides the Google Gemini client behind the macro-risk
// narrative.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 60 * time.Second

	maxNewsItems = 10
)

// Client implements the NarrativeClient interface over the Gemini API.
type Client struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	logger   *common.Logger
	validate *validator.Validate
}

var _ interfaces.NarrativeClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout caps the time spent on one generation call
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini narrative client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:   genaiClient,
		model:    DefaultModel,
		timeout:  DefaultTimeout,
		logger:   common.NewSilentLogger(),
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Model returns the model identifier recorded on assessments.
func (c *Client) Model() string {
	return c.model
}

// Close closes the client
func (c *Client) Close() error {
	// The genai client doesn't have a Close method
	return nil
}

// AssessMacroRisk asks the model for the macro tailwinds and headwinds
// affecting a company and validates the JSON payload against the closed
// factor vocabulary. Every failure wraps models.ErrNarrativeUnavailable
// so callers can cache the outage instead of retrying per request.
func (c *Client) AssessMacroRisk(ctx context.Context, input *models.MacroRiskInput) (*models.MacroRiskAssessment, error) {
	if input == nil || input.Profile == nil {
		return nil, fmt.Errorf("%w: no company profile to assess", models.ErrNarrativeUnavailable)
	}
	ticker := input.Profile.Ticker

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug().Str("model", c.model).Str("ticker", ticker).Msg("Generating macro risk assessment")

	contents := genai.Text(buildMacroRiskPrompt(input))
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNarrativeUnavailable, err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNarrativeUnavailable, err)
	}

	assessment, err := c.parseAssessment(text, ticker)
	if err != nil {
		return nil, err
	}
	return assessment, nil
}

// macroRiskPayload is the shape the model is asked to return.
type macroRiskPayload struct {
	Tailwinds []models.MacroFactor `json:"tailwinds" validate:"dive"`
	Headwinds []models.MacroFactor `json:"headwinds" validate:"dive"`
	Summary   string               `json:"summary" validate:"required"`
}

// parseAssessment decodes and shape-checks the model's JSON reply. The
// factor content itself is never judged, only the schema.
func (c *Client) parseAssessment(text, ticker string) (*models.MacroRiskAssessment, error) {
	var payload macroRiskPayload
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed narrative payload: %v", models.ErrNarrativeUnavailable, err)
	}

	normalizeFactors(payload.Tailwinds)
	normalizeFactors(payload.Headwinds)

	if err := c.validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("%w: narrative payload failed schema check: %v", models.ErrNarrativeUnavailable, err)
	}

	assessment := &models.MacroRiskAssessment{
		Ticker:      ticker,
		Tailwinds:   payload.Tailwinds,
		Headwinds:   payload.Headwinds,
		Summary:     payload.Summary,
		ModelUsed:   c.model,
		GeneratedAt: time.Now().UTC(),
	}
	if assessment.Tailwinds == nil {
		assessment.Tailwinds = []models.MacroFactor{}
	}
	if assessment.Headwinds == nil {
		assessment.Headwinds = []models.MacroFactor{}
	}
	return assessment, nil
}

// normalizeFactors lowercases the enum fields so a model replying "High"
// instead of "high" still passes the schema check.
func normalizeFactors(factors []models.MacroFactor) {
	for i := range factors {
		factors[i].Impact = strings.ToLower(strings.TrimSpace(factors[i].Impact))
		factors[i].Category = strings.ToLower(strings.TrimSpace(factors[i].Category))
	}
}

// stripCodeFences removes a surrounding markdown code fence, which some
// models emit even when asked for raw JSON.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// buildMacroRiskPrompt creates the assessment prompt from the profile,
// key metrics, and recent headlines.
func buildMacroRiskPrompt(input *models.MacroRiskInput) string {
	profile := input.Profile

	var sb strings.Builder
	fmt.Fprintf(&sb, `Assess the macro-economic environment for %s (%s).

Identify the tailwinds and headwinds acting on the company from forces
outside its control: trade policy, interest rates, regulation,
technology shifts, geopolitics, commodity prices, consumer behavior,
and labor markets.

Company:
- Sector: %s
- Industry: %s
`, profile.Name, profile.Ticker, profile.Sector, profile.Industry)

	if profile.Description != "" {
		fmt.Fprintf(&sb, "- Description: %s\n", profile.Description)
	}

	if len(input.KeyMetrics) > 0 {
		sb.WriteString("\nKey metrics:\n")
		names := make([]string, 0, len(input.KeyMetrics))
		for name := range input.KeyMetrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "- %s: %.2f\n", name, input.KeyMetrics[name])
		}
	}

	if len(input.News) > 0 {
		sb.WriteString("\nRecent headlines:\n")
		news := input.News
		if len(news) > maxNewsItems {
			news = news[:maxNewsItems]
		}
		for _, item := range news {
			fmt.Fprintf(&sb, "- %s\n", item.Title)
		}
	}

	sb.WriteString(`
Respond with JSON only, matching this schema exactly:
{
  "tailwinds": [{"title": "...", "explanation": "...", "impact": "high|medium|low", "category": "trade|rates|regulation|technology|geopolitical|commodity|consumer|labor|other"}],
  "headwinds": [{"title": "...", "explanation": "...", "impact": "high|medium|low", "category": "trade|rates|regulation|technology|geopolitical|commodity|consumer|labor|other"}],
  "summary": "two or three sentences weighing the balance"
}
List at most four factors on each side. Use empty arrays when nothing material applies.`)

	return sb.String()
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}
