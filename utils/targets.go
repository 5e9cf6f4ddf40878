package utils

// Age-banded daily nutrient targets, keyed by canonical nutrient field.
// Values follow the reference bands used for infants (≤12 months), toddlers
// (13–36 months) and preschoolers (>36 months). Region is accepted for
// future regional tables; the bands below are the default set.
func TargetsForAge(ageMonths int, region string) map[string]float64 {
	switch {
	case ageMonths <= 12:
		return map[string]float64{
			NutrCalories:   700,
			NutrProteinG:   11,
			NutrIronMg:     11,
			NutrVitaminDIU: 400,
		}
	case ageMonths <= 36:
		return map[string]float64{
			NutrCalories:   1000,
			NutrProteinG:   13,
			NutrFiberG:     14,
			NutrIronMg:     7,
			NutrCalciumMg:  700,
			NutrVitaminAIU: 1000,
			NutrVitaminCMg: 15,
			NutrVitaminDIU: 600,
			NutrZincMg:     3,
		}
	default:
		return map[string]float64{
			NutrCalories:   1200,
			NutrProteinG:   19,
			NutrFiberG:     17,
			NutrIronMg:     10,
			NutrCalciumMg:  1000,
			NutrVitaminCMg: 25,
			NutrZincMg:     5,
		}
	}
}
