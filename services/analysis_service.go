package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

// Analysis is the strict internal schema for the external model's meal
// analysis. Nothing downstream ever sees the raw payload; the normalizer
// defaults and clamps everything at this boundary.
type Analysis struct {
	DetectedFoods       []string            `json:"detected_foods"`
	EstimatedQuantities map[string]string   `json:"estimated_quantities"`
	NutritionBreakdown  map[string]*float64 `json:"nutrition_breakdown"`
	ConfidenceScore     *float64            `json:"confidence_score"`
	AnalysisNotes       string              `json:"analysis_notes"`
}

// Analyzer is the external analysis model call. strict requests the
// schema-reinforced prompt used on the single retry.
type Analyzer interface {
	Analyze(ctx context.Context, rawInput string, child *models.Child, strict bool) (*Analysis, error)
}

// OpenAIAnalyzer analyzes meal descriptions with a chat-completions model.
type OpenAIAnalyzer struct {
	client      *OpenAIClient
	model       string
	temperature float64
}

func NewOpenAIAnalyzer(client *OpenAIClient) *OpenAIAnalyzer {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAnalyzer{client: client, model: model, temperature: 0.3}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, rawInput string, child *models.Child, strict bool) (*Analysis, error) {
	system := utils.MealAnalysisPrompt(
		child.AgeMonths(timeNow()),
		child.AllergyList(),
		child.RestrictionList(),
		child.Region,
	)
	if strict {
		system += utils.StrictJSONSuffix
	}

	content, err := a.client.ChatCompletion(ctx, a.model, a.temperature, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: "Meal description: " + rawInput},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	return ParseAnalysis(content)
}

// ParseAnalysis decodes model output into the internal schema, tolerating
// markdown code fences around the JSON.
func ParseAnalysis(content string) (*Analysis, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}

	var out Analysis
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisMalformed, err)
	}
	if len(out.DetectedFoods) == 0 {
		return nil, fmt.Errorf("%w: no detected foods", ErrAnalysisMalformed)
	}
	return &out, nil
}
