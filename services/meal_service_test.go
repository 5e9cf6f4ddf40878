package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMealService(t *testing.T, analyzer Analyzer) (*MealService, *GamificationService, uuid.UUID, uuid.UUID) {
	t.Helper()
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	gam := NewGamificationService(db, nil, nil)
	return NewMealService(db, analyzer, gam, nil), gam, userID, child.ID
}

func TestLogMealValidation(t *testing.T) {
	svc, _, userID, childID := newMealService(t, &fakeAnalyzer{analysis: goodAnalysis()})
	ctx := context.Background()
	when := mustDate(t, "2024-06-01")

	cases := []struct {
		name string
		req  MealCreateRequest
	}{
		{"empty raw input", MealCreateRequest{ChildID: childID, MealType: "lunch", InputMethod: "text", MealTime: when, RawInput: "   "}},
		{"bad meal type", MealCreateRequest{ChildID: childID, MealType: "brunch", InputMethod: "text", MealTime: when, RawInput: "toast"}},
		{"bad input method", MealCreateRequest{ChildID: childID, MealType: "lunch", InputMethod: "telepathy", MealTime: when, RawInput: "toast"}},
		{"zero meal time", MealCreateRequest{ChildID: childID, MealType: "lunch", InputMethod: "text", RawInput: "toast"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.LogMeal(ctx, userID, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: uuid.New(), MealType: "lunch", InputMethod: "text", MealTime: when, RawInput: "toast",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogMealNormalizesAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &Analysis{
		DetectedFoods: []string{"porridge"},
		NutritionBreakdown: map[string]*float64{
			"calories":  f64(250.07),
			"protein_g": f64(-3), // clamped
			"iron_mg":   nil,     // treated as 0
		},
		ConfidenceScore: f64(1.7), // clamped to 1
	}}
	svc, _, userID, childID := newMealService(t, analyzer)

	// 23:30 local in UTC-5 is 04:30 the next UTC day.
	loc := time.FixedZone("UTC-5", -5*3600)
	mealTime := time.Date(2024, 6, 1, 23, 30, 0, 0, loc)

	meal, err := svc.LogMeal(context.Background(), userID, MealCreateRequest{
		ChildID: childID, MealType: "Dinner", InputMethod: "TEXT",
		MealTime: mealTime, RawInput: "porridge for dinner",
	})
	require.NoError(t, err)

	assert.Equal(t, "dinner", meal.MealType)
	assert.Equal(t, "text", meal.InputMethod)
	assert.Equal(t, "2024-06-02", meal.MealDate.UTC().Format("2006-01-02"))
	assert.Equal(t, 250.1, meal.Calories)
	assert.Zero(t, meal.ProteinG)
	assert.Zero(t, meal.IronMg)
	assert.Equal(t, 1.0, meal.ConfidenceScore)
	assert.False(t, meal.LowConfidence)
	assert.False(t, meal.NeedsReview)
	assert.Equal(t, []string{"porridge"}, meal.FoodItemList())
}

func TestLogMealMissingConfidenceFlagsLow(t *testing.T) {
	analysis := goodAnalysis()
	analysis.ConfidenceScore = nil
	svc, _, userID, childID := newMealService(t, &fakeAnalyzer{analysis: analysis})

	meal, err := svc.LogMeal(context.Background(), userID, MealCreateRequest{
		ChildID: childID, MealType: "breakfast", InputMethod: "text",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "oatmeal",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, meal.ConfidenceScore)
	assert.True(t, meal.LowConfidence)
}

func TestLogMealRetriesStrictOnce(t *testing.T) {
	analyzer := &fakeAnalyzer{failures: 1, analysis: goodAnalysis()}
	svc, _, userID, childID := newMealService(t, analyzer)

	meal, err := svc.LogMeal(context.Background(), userID, MealCreateRequest{
		ChildID: childID, MealType: "lunch", InputMethod: "text",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "rice and beans",
	})
	require.NoError(t, err)
	assert.False(t, meal.NeedsReview)
	require.Len(t, analyzer.calls, 2)
	assert.False(t, analyzer.calls[0])
	assert.True(t, analyzer.calls[1], "retry must be schema-reinforced")
}

func TestLogMealDegradesWhenAnalysisFails(t *testing.T) {
	analyzer := &fakeAnalyzer{failures: 2}
	svc, gam, userID, childID := newMealService(t, analyzer)
	ctx := context.Background()

	meal, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: childID, MealType: "snack", InputMethod: "voice",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "banana slices and yogurt",
	})
	require.NoError(t, err, "analysis failure must not lose the meal log")

	assert.Equal(t, []string{"banana"}, meal.FoodItemList())
	assert.Zero(t, meal.Calories)
	assert.Zero(t, meal.ConfidenceScore)
	assert.True(t, meal.LowConfidence)
	assert.True(t, meal.NeedsReview)
	assert.NotEmpty(t, meal.Notes)
	require.Len(t, analyzer.calls, 2)

	// Degraded logs still count as activity.
	g, err := gam.Summary(ctx, userID, childID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.TotalMeals)
	assert.Equal(t, 1, g.CurrentStreak)
}

func TestLogMealAppendsSafetyWarnings(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: &Analysis{
		DetectedFoods: []string{"honey toast", "strawberry yogurt"},
		NutritionBreakdown: map[string]*float64{
			"calories": f64(120),
		},
		ConfidenceScore: f64(0.8),
	}}
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2024-01-15")) // ~6 months old
	require.NoError(t, db.Model(child).Update("allergies", `["strawberry"]`).Error)
	gam := NewGamificationService(db, nil, nil)
	svc := NewMealService(db, analyzer, gam, nil)
	setTestTime(t, mustDate(t, "2024-07-20"))

	meal, err := svc.LogMeal(context.Background(), userID, MealCreateRequest{
		ChildID: child.ID, MealType: "breakfast", InputMethod: "text",
		MealTime: mustDate(t, "2024-07-20"), RawInput: "honey toast and yogurt",
	})
	require.NoError(t, err)
	assert.Contains(t, meal.Notes, "Safety:")
	assert.Contains(t, meal.Notes, "honey")
	assert.Contains(t, meal.Notes, "strawberry")
}

func TestUpdateMealMovesCalendarDateAndRecomputes(t *testing.T) {
	svc, gam, userID, childID := newMealService(t, &fakeAnalyzer{analysis: goodAnalysis()})
	ctx := context.Background()

	_, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: childID, MealType: "breakfast", InputMethod: "text",
		MealTime: mustDate(t, "2024-05-31"), RawInput: "eggs",
	})
	require.NoError(t, err)
	second, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: childID, MealType: "breakfast", InputMethod: "text",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "toast",
	})
	require.NoError(t, err)

	g, err := gam.Summary(ctx, userID, childID)
	require.NoError(t, err)
	require.Equal(t, 2, g.CurrentStreak)

	// Moving the second meal back onto the first day collapses the streak.
	newTime := mustDate(t, "2024-05-31").Add(18 * time.Hour)
	updated, err := svc.UpdateMeal(ctx, userID, second.ID, MealPatch{MealTime: &newTime})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31", updated.MealDate.UTC().Format("2006-01-02"))

	g, err = gam.Summary(ctx, userID, childID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.CurrentStreak)
	assert.Equal(t, 2, g.TotalMeals)
}

func TestDeleteMealRecomputes(t *testing.T) {
	svc, gam, userID, childID := newMealService(t, &fakeAnalyzer{analysis: goodAnalysis()})
	ctx := context.Background()

	meal, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: childID, MealType: "lunch", InputMethod: "text",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "pasta",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMeal(ctx, userID, meal.ID))

	_, err = svc.GetMeal(ctx, userID, meal.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	g, err := gam.Summary(ctx, userID, childID)
	require.NoError(t, err)
	assert.Zero(t, g.TotalMeals)
	assert.Zero(t, g.CurrentStreak)
	assert.Nil(t, g.LastActivityDate)
}

func TestGetMealScopedToOwner(t *testing.T) {
	svc, _, userID, childID := newMealService(t, &fakeAnalyzer{analysis: goodAnalysis()})
	ctx := context.Background()

	meal, err := svc.LogMeal(ctx, userID, MealCreateRequest{
		ChildID: childID, MealType: "lunch", InputMethod: "text",
		MealTime: mustDate(t, "2024-06-01"), RawInput: "pasta",
	})
	require.NoError(t, err)

	_, err = svc.GetMeal(ctx, uuid.New(), meal.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
