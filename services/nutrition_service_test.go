package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
)

func seedMeal(t *testing.T, db *gorm.DB, userID, childID uuid.UUID, day string, n models.Nutrients) models.Meal {
	t.Helper()
	d := mustDate(t, day)
	meal := models.Meal{
		UserID: userID, ChildID: childID, MealType: "lunch", InputMethod: "text",
		MealTime: d.Add(12 * time.Hour), MealDate: d, RawInput: "x",
		FoodItems: []byte(`[]`), Nutrients: n,
	}
	require.NoError(t, db.Create(&meal).Error)
	return meal
}

func TestDailyTotalsSumsAndRounds(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	svc := NewNutritionService(db)

	m1 := seedMeal(t, db, userID, child.ID, "2024-06-01", models.Nutrients{Calories: 180.333, ProteinG: 5.111, IronMg: 1.2})
	m2 := seedMeal(t, db, userID, child.ID, "2024-06-01", models.Nutrients{Calories: 220.333, ProteinG: 7.222, IronMg: 0.8})
	seedMeal(t, db, userID, child.ID, "2024-06-02", models.Nutrients{Calories: 999})

	totals, err := svc.DailyTotals(context.Background(), userID, child.ID, mustDate(t, "2024-06-01"))
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", totals.Date)
	assert.Equal(t, 2, totals.MealCount)
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m2.ID}, totals.MealIDs)
	assert.Equal(t, 400.67, totals.Nutrients.Calories)
	assert.Equal(t, 12.33, totals.Nutrients.ProteinG)
	assert.Equal(t, 2.0, totals.Nutrients.IronMg)
}

func TestDailyTotalsEmptyDay(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	svc := NewNutritionService(db)

	totals, err := svc.DailyTotals(context.Background(), userID, child.ID, mustDate(t, "2024-06-01"))
	require.NoError(t, err)
	assert.Zero(t, totals.MealCount)
	assert.Empty(t, totals.MealIDs)
	assert.Zero(t, totals.Nutrients.Calories)
}

func TestTrendZeroFillsMissingDays(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	svc := NewNutritionService(db)

	seedMeal(t, db, userID, child.ID, "2024-06-01", models.Nutrients{Calories: 100})
	seedMeal(t, db, userID, child.ID, "2024-06-03", models.Nutrients{Calories: 300})

	series, err := svc.Trend(context.Background(), userID, child.ID, mustDate(t, "2024-06-01"), mustDate(t, "2024-06-04"))
	require.NoError(t, err)

	require.Len(t, series.Days, 4)
	assert.Equal(t, "2024-06-01", series.Days[0].Date)
	assert.Equal(t, 100.0, series.Days[0].Nutrients.Calories)
	assert.Equal(t, "2024-06-02", series.Days[1].Date)
	assert.Zero(t, series.Days[1].MealCount)
	assert.Equal(t, 300.0, series.Days[2].Nutrients.Calories)
	assert.Zero(t, series.Days[3].MealCount)
}

func TestTrendRejectsInvertedRange(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	svc := NewNutritionService(db)

	_, err := svc.Trend(context.Background(), userID, child.ID, mustDate(t, "2024-06-04"), mustDate(t, "2024-06-01"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeletedMealLeavesAggregates(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	svc := NewNutritionService(db)

	meal := seedMeal(t, db, userID, child.ID, "2024-06-01", models.Nutrients{Calories: 500})
	require.NoError(t, db.Delete(&models.Meal{}, "id = ?", meal.ID).Error)

	totals, err := svc.DailyTotals(context.Background(), userID, child.ID, mustDate(t, "2024-06-01"))
	require.NoError(t, err)
	assert.Zero(t, totals.MealCount)
	assert.Zero(t, totals.Nutrients.Calories)
}

func TestTargetsComputedFromAgeAtQueryTime(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2024-01-15"))
	svc := NewNutritionService(db)
	setTestTime(t, mustDate(t, "2024-07-20")) // 6 months old

	targets, err := svc.Targets(context.Background(), userID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, targets.AgeMonths)
	assert.Equal(t, 700.0, targets.Targets["calories"])
	assert.Equal(t, 400.0, targets.Targets["vitamin_d_iu"])

	// Two years later the toddler band applies.
	setTestTime(t, mustDate(t, "2026-07-20"))
	targets, err = svc.Targets(context.Background(), userID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, targets.AgeMonths)
	assert.Equal(t, 1000.0, targets.Targets["calories"])

	_, err = svc.Targets(context.Background(), userID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTargetsApplyPerChildOverrides(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2024-01-15"))
	require.NoError(t, db.Model(child).Update("custom_targets", `{"calories":650,"iron_mg":-1}`).Error)
	svc := NewNutritionService(db)
	setTestTime(t, mustDate(t, "2024-07-20"))

	targets, err := svc.Targets(context.Background(), userID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 650.0, targets.Targets["calories"])
	assert.Equal(t, 11.0, targets.Targets["iron_mg"], "negative overrides are ignored")
}

func TestAggregatesScopedToChild(t *testing.T) {
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	other := models.Child{UserID: userID, Name: "Leo", DateOfBirth: mustDate(t, "2022-05-01")}
	require.NoError(t, db.Create(&other).Error)
	svc := NewNutritionService(db)

	seedMeal(t, db, userID, child.ID, "2024-06-01", models.Nutrients{Calories: 100})
	seedMeal(t, db, userID, other.ID, "2024-06-01", models.Nutrients{Calories: 900})

	totals, err := svc.DailyTotals(context.Background(), userID, child.ID, mustDate(t, "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, totals.Nutrients.Calories)
	assert.Equal(t, 1, totals.MealCount)
}
