package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

// NutritionService is the read-side aggregation engine. It is stateless:
// every result is a pure function of the meal rows at query time, so the
// "nutrition" and "meals" API surfaces return identical aggregates by
// construction.
type NutritionService struct {
	db *gorm.DB
}

func NewNutritionService(db *gorm.DB) *NutritionService {
	return &NutritionService{db: db}
}

type DailyTotals struct {
	Date      string           `json:"date"`
	Nutrients models.Nutrients `json:"nutrients"`
	MealCount int              `json:"meal_count"`
	MealIDs   []uuid.UUID      `json:"meal_ids"`
}

type TrendSeries struct {
	ChildID   uuid.UUID     `json:"child_id"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Days      []DailyTotals `json:"days"`
}

type NutrientTargets struct {
	ChildID   uuid.UUID          `json:"child_id"`
	AgeMonths int                `json:"age_months"`
	Targets   map[string]float64 `json:"targets"`
}

// DailyTotals sums every nutrient field and the meal count across the
// child's meals whose derived calendar date equals date.
func (s *NutritionService) DailyTotals(ctx context.Context, userID, childID uuid.UUID, date time.Time) (*DailyTotals, error) {
	day := utils.CalendarDate(date)

	var meals []models.Meal
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ? AND meal_date = ?", userID, childID, day).
		Order("meal_time ASC").
		Find(&meals).Error; err != nil {
		return nil, err
	}

	return sumMeals(day, meals), nil
}

// Trend produces one entry per calendar day in [startDate, endDate],
// synthesizing zero-valued entries for days with no logged meals.
func (s *NutritionService) Trend(ctx context.Context, userID, childID uuid.UUID, startDate, endDate time.Time) (*TrendSeries, error) {
	start := utils.CalendarDate(startDate)
	end := utils.CalendarDate(endDate)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrValidation)
	}

	var meals []models.Meal
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ? AND meal_date BETWEEN ? AND ?", userID, childID, start, end).
		Order("meal_time ASC").
		Find(&meals).Error; err != nil {
		return nil, err
	}

	byDay := map[string][]models.Meal{}
	for _, m := range meals {
		key := m.MealDate.UTC().Format(utils.DateLayout)
		byDay[key] = append(byDay[key], m)
	}

	series := &TrendSeries{
		ChildID:   childID,
		StartDate: start.Format(utils.DateLayout),
		EndDate:   end.Format(utils.DateLayout),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		series.Days = append(series.Days, *sumMeals(d, byDay[d.Format(utils.DateLayout)]))
	}
	return series, nil
}

// Targets returns the age-appropriate nutrient targets for the child. Age is
// computed from the date of birth at query time, never cached.
func (s *NutritionService) Targets(ctx context.Context, userID, childID uuid.UUID) (*NutrientTargets, error) {
	var child models.Child
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", childID, userID).
		First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child", ErrNotFound)
		}
		return nil, err
	}

	age := child.AgeMonths(timeNow())
	targets := utils.TargetsForAge(age, child.Region)
	for k, v := range child.TargetOverrides() {
		if v >= 0 {
			targets[k] = v
		}
	}
	return &NutrientTargets{
		ChildID:   childID,
		AgeMonths: age,
		Targets:   targets,
	}, nil
}

func sumMeals(day time.Time, meals []models.Meal) *DailyTotals {
	out := &DailyTotals{
		Date:    day.UTC().Format(utils.DateLayout),
		MealIDs: []uuid.UUID{},
	}
	for _, m := range meals {
		out.Nutrients.Calories += m.Calories
		out.Nutrients.ProteinG += m.ProteinG
		out.Nutrients.FatG += m.FatG
		out.Nutrients.CarbsG += m.CarbsG
		out.Nutrients.FiberG += m.FiberG
		out.Nutrients.IronMg += m.IronMg
		out.Nutrients.CalciumMg += m.CalciumMg
		out.Nutrients.VitaminAIU += m.VitaminAIU
		out.Nutrients.VitaminCMg += m.VitaminCMg
		out.Nutrients.VitaminDIU += m.VitaminDIU
		out.Nutrients.ZincMg += m.ZincMg
		out.Nutrients.FolateMcg += m.FolateMcg
		out.MealCount++
		out.MealIDs = append(out.MealIDs, m.ID)
	}
	roundNutrients(&out.Nutrients)
	return out
}

func roundNutrients(n *models.Nutrients) {
	n.Calories = utils.Round2(n.Calories)
	n.ProteinG = utils.Round2(n.ProteinG)
	n.FatG = utils.Round2(n.FatG)
	n.CarbsG = utils.Round2(n.CarbsG)
	n.FiberG = utils.Round2(n.FiberG)
	n.IronMg = utils.Round2(n.IronMg)
	n.CalciumMg = utils.Round2(n.CalciumMg)
	n.VitaminAIU = utils.Round2(n.VitaminAIU)
	n.VitaminCMg = utils.Round2(n.VitaminCMg)
	n.VitaminDIU = utils.Round2(n.VitaminDIU)
	n.ZincMg = utils.Round2(n.ZincMg)
	n.FolateMcg = utils.Round2(n.FolateMcg)
}
