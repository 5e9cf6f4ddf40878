package utils

import (
	"fmt"
	"strings"
)

// Foods that are unsafe or discouraged for young children, keyed by the
// maximum age in months the warning applies to. Matching is substring-based
// over the detected food name.
var ageRestrictedFoods = []struct {
	keyword   string
	maxMonths int
	warning   string
}{
	{"honey", 12, "honey is unsafe before 12 months (botulism risk)"},
	{"cow milk", 12, "cow's milk as a drink is not recommended before 12 months"},
	{"cow's milk", 12, "cow's milk as a drink is not recommended before 12 months"},
	{"whole nut", 48, "whole nuts are a choking hazard before 4 years"},
	{"peanut", 48, "whole peanuts are a choking hazard before 4 years"},
	{"popcorn", 48, "popcorn is a choking hazard before 4 years"},
	{"raw egg", 999, "raw or undercooked egg carries salmonella risk"},
	{"unpasteurized", 999, "unpasteurized products are unsafe for young children"},
	{"soda", 999, "sugary drinks are discouraged for young children"},
	{"candy", 999, "added sugar is discouraged for young children"},
}

// AssessFoodSafety checks detected food items against the child's allergy
// list and age-based feeding restrictions. Returns human-readable warnings;
// empty means no concerns found.
func AssessFoodSafety(foodItems []string, ageMonths int, allergies []string) []string {
	var warnings []string
	for _, item := range foodItems {
		lower := strings.ToLower(item)
		for _, a := range allergies {
			if a != "" && strings.Contains(lower, strings.ToLower(a)) {
				warnings = append(warnings, fmt.Sprintf("%q matches listed allergy %q", item, a))
			}
		}
		for _, r := range ageRestrictedFoods {
			if ageMonths <= r.maxMonths && strings.Contains(lower, r.keyword) {
				warnings = append(warnings, fmt.Sprintf("%q: %s", item, r.warning))
			}
		}
	}
	return warnings
}
