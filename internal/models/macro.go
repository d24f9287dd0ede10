package models

import "time"

// MacroFactor is one macro-environment tailwind or headwind affecting a
// company. Impact and category come from a closed vocabulary so the
// narrative payload stays machine-checkable.
type MacroFactor struct {
	Title       string `json:"title" validate:"required"`
	Explanation string `json:"explanation" validate:"required"`
	Impact      string `json:"impact" validate:"required,oneof=high medium low"`
	Category    string `json:"category" validate:"required,oneof=trade rates regulation technology geopolitical commodity consumer labor other"`
}

// MacroRiskAssessment is the AI-narrative artifact for one ticker. Both
// factor lists are always present, possibly empty; content is never
// validated beyond schema shape.
type MacroRiskAssessment struct {
	Ticker      string        `json:"ticker"`
	Tailwinds   []MacroFactor `json:"tailwinds" validate:"dive"`
	Headwinds   []MacroFactor `json:"headwinds" validate:"dive"`
	Summary     string        `json:"summary"`
	ModelUsed   string        `json:"model_used,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// MacroRiskInput is what the narrative client receives: the profile, a
// handful of key metrics, and up to ten recent news items.
type MacroRiskInput struct {
	Profile    *CompanyProfile    `json:"profile"`
	KeyMetrics map[string]float64 `json:"key_metrics,omitempty"`
	News       []NewsItem         `json:"news,omitempty"`
}
