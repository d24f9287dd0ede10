package gemini

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

func newParseClient() *Client {
	return &Client{
		model:    DefaultModel,
		logger:   common.NewSilentLogger(),
		validate: validator.New(),
	}
}

func TestParseAssessmentValidPayload(t *testing.T) {
	c := newParseClient()

	raw := `{
		"tailwinds": [
			{"title": "Rate cuts", "explanation": "Lower funding costs", "impact": "medium", "category": "rates"}
		],
		"headwinds": [
			{"title": "Tariff exposure", "explanation": "Import costs rising", "impact": "high", "category": "trade"}
		],
		"summary": "Balance tilts slightly negative."
	}`

	assessment, err := c.parseAssessment(raw, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "TQNT", assessment.Ticker)
	assert.Equal(t, DefaultModel, assessment.ModelUsed)
	assert.False(t, assessment.GeneratedAt.IsZero())
	require.Len(t, assessment.Tailwinds, 1)
	assert.Equal(t, "rates", assessment.Tailwinds[0].Category)
	require.Len(t, assessment.Headwinds, 1)
	assert.Equal(t, "Balance tilts slightly negative.", assessment.Summary)
}

func TestParseAssessmentStripsCodeFences(t *testing.T) {
	c := newParseClient()

	raw := "```json\n{\"tailwinds\": [], \"headwinds\": [], \"summary\": \"Quiet macro picture.\"}\n```"
	assessment, err := c.parseAssessment(raw, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "Quiet macro picture.", assessment.Summary)
	assert.NotNil(t, assessment.Tailwinds)
	assert.NotNil(t, assessment.Headwinds)
}

func TestParseAssessmentNormalizesEnumCase(t *testing.T) {
	c := newParseClient()

	raw := `{
		"tailwinds": [{"title": "AI demand", "explanation": "Compute spend growing", "impact": "High", "category": " Technology "}],
		"headwinds": [],
		"summary": "Positive."
	}`

	assessment, err := c.parseAssessment(raw, "TQNT")
	require.NoError(t, err)
	assert.Equal(t, "high", assessment.Tailwinds[0].Impact)
	assert.Equal(t, "technology", assessment.Tailwinds[0].Category)
}

func TestParseAssessmentRejectsBadSchema(t *testing.T) {
	c := newParseClient()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"tailwinds": [`},
		{"unknown impact", `{"tailwinds": [{"title": "t", "explanation": "e", "impact": "severe", "category": "trade"}], "headwinds": [], "summary": "s"}`},
		{"unknown category", `{"tailwinds": [], "headwinds": [{"title": "t", "explanation": "e", "impact": "low", "category": "weather"}], "summary": "s"}`},
		{"missing summary", `{"tailwinds": [], "headwinds": []}`},
		{"factor missing title", `{"tailwinds": [{"explanation": "e", "impact": "low", "category": "other"}], "headwinds": [], "summary": "s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.parseAssessment(tt.raw, "TQNT")
			assert.ErrorIs(t, err, models.ErrNarrativeUnavailable)
		})
	}
}

func TestBuildMacroRiskPrompt(t *testing.T) {
	input := &models.MacroRiskInput{
		Profile: &models.CompanyProfile{
			Ticker:   "TQNT",
			Name:     "Taliquant",
			Sector:   "Technology",
			Industry: "Software",
		},
		KeyMetrics: map[string]float64{
			"pe_ratio":       22.5,
			"revenue_growth": 0.18,
		},
		News: []models.NewsItem{
			{Title: "Taliquant wins government contract"},
			{Title: "Sector-wide selloff on rate fears"},
		},
	}

	prompt := buildMacroRiskPrompt(input)
	assert.Contains(t, prompt, "Taliquant (TQNT)")
	assert.Contains(t, prompt, "Sector: Technology")
	assert.Contains(t, prompt, "pe_ratio: 22.50")
	assert.Contains(t, prompt, "Taliquant wins government contract")
	assert.Contains(t, prompt, `"summary"`)
	assert.Less(t, strings.Index(prompt, "pe_ratio"), strings.Index(prompt, "revenue_growth"),
		"metrics are listed in sorted order")
}

func TestBuildMacroRiskPromptCapsNews(t *testing.T) {
	news := make([]models.NewsItem, 15)
	for i := range news {
		news[i] = models.NewsItem{Title: "headline"}
	}
	prompt := buildMacroRiskPrompt(&models.MacroRiskInput{
		Profile: &models.CompanyProfile{Ticker: "TQNT", Name: "Taliquant"},
		News:    news,
	})
	assert.Equal(t, maxNewsItems, strings.Count(prompt, "- headline"))
}
