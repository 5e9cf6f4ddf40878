package utils

import (
	"fmt"
	"strings"
)

// MealAnalysisPrompt builds the system prompt for the external analysis
// model. The JSON structure must stay in sync with services.Analysis.
func MealAnalysisPrompt(ageMonths int, allergies, restrictions []string, region string) string {
	if region == "" {
		region = "unknown"
	}
	return fmt.Sprintf(`You are a pediatric nutrition expert. Analyze the following meal for a %d-month-old child.

Child Profile:
- Age: %d months
- Allergies: %s
- Dietary restrictions: %s
- Region: %s

Analyze the meal and return a JSON response with the following structure:
{
    "detected_foods": ["food1", "food2"],
    "estimated_quantities": {"food1": "1 medium", "food2": "1 small"},
    "nutrition_breakdown": {
        "calories": 120.0,
        "protein_g": 1.2,
        "fat_g": 0.5,
        "carbs_g": 25.0,
        "fiber_g": 2.0,
        "iron_mg": 0.3,
        "calcium_mg": 15.0,
        "vitamin_a_iu": 50.0,
        "vitamin_c_mg": 5.0,
        "vitamin_d_iu": 0.0,
        "zinc_mg": 0.1,
        "folate_mcg": 5.0
    },
    "confidence_score": 0.85,
    "analysis_notes": "Brief analysis notes"
}

If quantities are not specified, estimate reasonable portions for a %d-month-old child.
Be conservative with estimates and note any uncertainty in the confidence_score.`,
		ageMonths, ageMonths, listOrNone(allergies), listOrNone(restrictions), region, ageMonths)
}

// StrictJSONSuffix reinforces the schema on the single retry after a
// malformed or unparseable analysis response.
const StrictJSONSuffix = `

IMPORTANT: Respond with ONLY the JSON object described above. No prose, no
markdown fences, no explanation. "detected_foods" must be a non-empty array
of food names and every nutrition_breakdown field must be a number.`

// ChatSystemPrompt is the assistant prompt; the assembled context blocks are
// appended by the chat service.
const ChatSystemPrompt = `You are TinyTummy, a pediatric nutrition assistant for parents and caregivers. You provide evidence-based advice from authoritative sources like WHO, AAP, CDC and NHS.

When responding:
1. Base your answers on the provided nutrition guidelines
2. Be clear, supportive, and age-appropriate
3. Always recommend consulting healthcare providers for specific medical advice
4. Use simple language that parents can understand`

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
