package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessFoodSafetyAgeRestrictions(t *testing.T) {
	warnings := AssessFoodSafety([]string{"Honey toast"}, 8, nil)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "honey")

	// Past the restriction age the warning disappears.
	warnings = AssessFoodSafety([]string{"Honey toast"}, 24, nil)
	assert.Empty(t, warnings)

	warnings = AssessFoodSafety([]string{"popcorn"}, 36, nil)
	assert.Len(t, warnings, 1)
}

func TestAssessFoodSafetyAllergies(t *testing.T) {
	warnings := AssessFoodSafety([]string{"Strawberry yogurt", "rice"}, 24, []string{"strawberry"})
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "strawberry")

	warnings = AssessFoodSafety([]string{"rice"}, 24, []string{"strawberry", ""})
	assert.Empty(t, warnings)
}
