package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeMonthsFloorsPartialMonths(t *testing.T) {
	child := Child{DateOfBirth: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, 6, child.AgeMonths(time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, child.AgeMonths(time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC)), "partial months floor")
	assert.Equal(t, 18, child.AgeMonths(time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)))
}

func TestAgeMonthsNeverNegative(t *testing.T) {
	child := Child{DateOfBirth: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Zero(t, child.AgeMonths(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAllergyListTolerant(t *testing.T) {
	child := Child{Allergies: []byte(`["milk","egg"]`)}
	assert.Equal(t, []string{"milk", "egg"}, child.AllergyList())

	child.Allergies = []byte(`not json`)
	assert.Empty(t, child.AllergyList())

	child.Allergies = nil
	assert.Empty(t, child.AllergyList())
}
