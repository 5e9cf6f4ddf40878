package utils

import "math"

// Canonical nutrient field keys, matching the external analysis schema and
// the meals table columns.
const (
	NutrCalories   = "calories"
	NutrProteinG   = "protein_g"
	NutrFatG       = "fat_g"
	NutrCarbsG     = "carbs_g"
	NutrFiberG     = "fiber_g"
	NutrIronMg     = "iron_mg"
	NutrCalciumMg  = "calcium_mg"
	NutrVitaminAIU = "vitamin_a_iu"
	NutrVitaminCMg = "vitamin_c_mg"
	NutrVitaminDIU = "vitamin_d_iu"
	NutrZincMg     = "zinc_mg"
	NutrFolateMcg  = "folate_mcg"
)

// NutrientKeys lists the canonical set in stable order.
var NutrientKeys = []string{
	NutrCalories, NutrProteinG, NutrFatG, NutrCarbsG, NutrFiberG,
	NutrIronMg, NutrCalciumMg, NutrVitaminAIU, NutrVitaminCMg,
	NutrVitaminDIU, NutrZincMg, NutrFolateMcg,
}

// Decimal places per field. IU-denominated vitamins are coarse; the rest
// keep two places like the meals table columns.
var nutrientPrecision = map[string]int{
	NutrCalories:   1,
	NutrProteinG:   2,
	NutrFatG:       2,
	NutrCarbsG:     2,
	NutrFiberG:     2,
	NutrIronMg:     2,
	NutrCalciumMg:  2,
	NutrVitaminAIU: 1,
	NutrVitaminCMg: 2,
	NutrVitaminDIU: 1,
	NutrZincMg:     2,
	NutrFolateMcg:  2,
}

// SanitizeNutrients maps a raw nutrient payload onto the canonical set:
// missing or nil values become 0, negatives are clamped to 0, NaN/Inf are
// dropped, and each value is rounded to its field precision. Total; never
// fails.
func SanitizeNutrients(raw map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(NutrientKeys))
	for _, key := range NutrientKeys {
		v := 0.0
		if p, ok := raw[key]; ok && p != nil {
			v = *p
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		out[key] = RoundTo(v, nutrientPrecision[key])
	}
	return out
}

// ClampConfidence forces a confidence score into [0,1].
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func RoundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func Round2(v float64) float64 { return RoundTo(v, 2) }
