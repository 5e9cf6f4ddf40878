package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

type MealService struct {
	db       *gorm.DB
	analyzer Analyzer
	gam      *GamificationService
	logger   *zap.Logger
}

func NewMealService(db *gorm.DB, analyzer Analyzer, gam *GamificationService, logger *zap.Logger) *MealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealService{db: db, analyzer: analyzer, gam: gam, logger: logger}
}

type MealCreateRequest struct {
	ChildID     uuid.UUID `json:"child_id" binding:"required"`
	MealType    string    `json:"meal_type" binding:"required"`
	InputMethod string    `json:"input_method" binding:"required"`
	MealTime    time.Time `json:"meal_time" binding:"required"`
	RawInput    string    `json:"raw_input" binding:"required"`
	ImageURL    string    `json:"-"`
}

// MealPatch carries explicit edits. Nil fields are left untouched; a changed
// MealTime re-derives the calendar date and triggers streak recomputation.
type MealPatch struct {
	MealType *string    `json:"meal_type"`
	MealTime *time.Time `json:"meal_time"`
	Notes    *string    `json:"notes"`
}

// LogMeal runs the full normalization pipeline: validate caller input, call
// the external analysis model (one strict retry), sanitize the nutrient
// payload, derive the calendar date, persist the canonical record and fire
// the gamification activity event. Analysis failures never abort the log;
// they produce a degraded record flagged for review.
func (s *MealService) LogMeal(ctx context.Context, userID uuid.UUID, req MealCreateRequest) (*models.Meal, error) {
	if strings.TrimSpace(req.RawInput) == "" {
		return nil, fmt.Errorf("%w: raw_input must not be empty", ErrValidation)
	}
	if !models.ValidMealType(strings.ToLower(req.MealType)) {
		return nil, fmt.Errorf("%w: invalid meal_type %q", ErrValidation, req.MealType)
	}
	if !models.ValidInputMethod(strings.ToLower(req.InputMethod)) {
		return nil, fmt.Errorf("%w: invalid input_method %q", ErrValidation, req.InputMethod)
	}
	if req.MealTime.IsZero() {
		return nil, fmt.Errorf("%w: meal_time is required", ErrValidation)
	}

	var child models.Child
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", req.ChildID, userID).
		First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child", ErrNotFound)
		}
		return nil, err
	}

	meal := s.normalize(ctx, &child, req)
	meal.UserID = userID

	if err := s.db.WithContext(ctx).Create(meal).Error; err != nil {
		return nil, err
	}

	// Activity events key on the meal's derived calendar date, not log time.
	if err := s.gam.RecordActivity(ctx, userID, child.ID, meal.MealDate); err != nil {
		s.logger.Error("gamification update failed after meal log",
			zap.String("meal_id", meal.ID.String()), zap.Error(err))
	}

	return meal, nil
}

// normalize converts the raw request plus the external analysis into a
// canonical meal record. Always returns a record; a failed analysis yields
// the degraded form.
func (s *MealService) normalize(ctx context.Context, child *models.Child, req MealCreateRequest) *models.Meal {
	meal := &models.Meal{
		ChildID:     child.ID,
		MealType:    strings.ToLower(req.MealType),
		MealTime:    req.MealTime,
		MealDate:    utils.CalendarDate(req.MealTime),
		InputMethod: strings.ToLower(req.InputMethod),
		RawInput:    req.RawInput,
		ImageURL:    req.ImageURL,
	}

	analysis, err := s.analyzeWithRetry(ctx, req.RawInput, child)
	if err != nil {
		s.logger.Warn("meal analysis degraded",
			zap.String("child_id", child.ID.String()), zap.Error(err))
		return s.degrade(meal, req.RawInput)
	}

	nutrients := utils.SanitizeNutrients(analysis.NutritionBreakdown)
	applyNutrients(&meal.Nutrients, nutrients)

	foods, _ := json.Marshal(analysis.DetectedFoods)
	meal.FoodItems = foods

	if len(analysis.EstimatedQuantities) > 0 {
		q, _ := json.Marshal(analysis.EstimatedQuantities)
		meal.EstimatedQuantity = string(q)
	}

	if analysis.ConfidenceScore != nil {
		meal.ConfidenceScore = utils.ClampConfidence(*analysis.ConfidenceScore)
	} else {
		meal.ConfidenceScore = 0.5
		meal.LowConfidence = true
	}

	notes := analysis.AnalysisNotes
	if warnings := utils.AssessFoodSafety(analysis.DetectedFoods, child.AgeMonths(timeNow()), child.AllergyList()); len(warnings) > 0 {
		if notes != "" {
			notes += " "
		}
		notes += "Safety: " + strings.Join(warnings, "; ")
	}
	meal.Notes = notes

	raw, _ := json.Marshal(analysis)
	meal.Analysis = raw

	return meal
}

func (s *MealService) analyzeWithRetry(ctx context.Context, rawInput string, child *models.Child) (*Analysis, error) {
	analysis, err := s.analyzer.Analyze(ctx, rawInput, child, false)
	if err == nil {
		return analysis, nil
	}

	// One schema-reinforced retry, never issued concurrently with the first.
	analysis, retryErr := s.analyzer.Analyze(ctx, rawInput, child, true)
	if retryErr == nil {
		return analysis, nil
	}
	return nil, retryErr
}

// degrade fills the record with the placeholder form: one literal food token
// from the raw input, zeroed nutrients, zero confidence and a review flag.
// Losing a user's meal log is worse than storing a flagged placeholder.
func (s *MealService) degrade(meal *models.Meal, rawInput string) *models.Meal {
	token := strings.TrimSpace(rawInput)
	if fields := strings.Fields(token); len(fields) > 0 {
		token = fields[0]
	}
	foods, _ := json.Marshal([]string{token})
	meal.FoodItems = foods
	meal.Nutrients = models.Nutrients{}
	meal.ConfidenceScore = 0
	meal.LowConfidence = true
	meal.NeedsReview = true
	meal.Notes = "Automatic analysis failed; nutrition values unavailable. Flagged for manual review."
	return meal
}

func (s *MealService) GetMeal(ctx context.Context, userID, mealID uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", mealID, userID).
		First(&meal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: meal", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (s *MealService) ListMeals(ctx context.Context, userID, childID uuid.UUID, limit int) ([]models.Meal, error) {
	if limit <= 0 {
		limit = 100
	}
	var meals []models.Meal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ?", userID, childID).
		Order("meal_time DESC").
		Limit(limit).
		Find(&meals).Error
	return meals, err
}

// UpdateMeal applies the patch and re-derives the calendar date from the
// (possibly new) timestamp. Any edit triggers a full streak recomputation
// from the child's activity history; incremental undo is unsound.
func (s *MealService) UpdateMeal(ctx context.Context, userID, mealID uuid.UUID, patch MealPatch) (*models.Meal, error) {
	meal, err := s.GetMeal(ctx, userID, mealID)
	if err != nil {
		return nil, err
	}

	if patch.MealType != nil {
		mt := strings.ToLower(*patch.MealType)
		if !models.ValidMealType(mt) {
			return nil, fmt.Errorf("%w: invalid meal_type %q", ErrValidation, *patch.MealType)
		}
		meal.MealType = mt
	}
	if patch.MealTime != nil {
		if patch.MealTime.IsZero() {
			return nil, fmt.Errorf("%w: meal_time must be a valid instant", ErrValidation)
		}
		meal.MealTime = *patch.MealTime
		meal.MealDate = utils.CalendarDate(*patch.MealTime)
	}
	if patch.Notes != nil {
		meal.Notes = *patch.Notes
	}

	if err := s.db.WithContext(ctx).Save(meal).Error; err != nil {
		return nil, err
	}

	if err := s.gam.Recompute(ctx, userID, meal.ChildID); err != nil {
		s.logger.Error("streak recomputation failed after meal edit",
			zap.String("meal_id", meal.ID.String()), zap.Error(err))
	}

	return meal, nil
}

func (s *MealService) DeleteMeal(ctx context.Context, userID, mealID uuid.UUID) error {
	meal, err := s.GetMeal(ctx, userID, mealID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Meal{}, "id = ?", meal.ID).Error; err != nil {
		return err
	}

	if err := s.gam.Recompute(ctx, userID, meal.ChildID); err != nil {
		s.logger.Error("streak recomputation failed after meal delete",
			zap.String("meal_id", meal.ID.String()), zap.Error(err))
	}
	return nil
}

func applyNutrients(n *models.Nutrients, vals map[string]float64) {
	n.Calories = vals[utils.NutrCalories]
	n.ProteinG = vals[utils.NutrProteinG]
	n.FatG = vals[utils.NutrFatG]
	n.CarbsG = vals[utils.NutrCarbsG]
	n.FiberG = vals[utils.NutrFiberG]
	n.IronMg = vals[utils.NutrIronMg]
	n.CalciumMg = vals[utils.NutrCalciumMg]
	n.VitaminAIU = vals[utils.NutrVitaminAIU]
	n.VitaminCMg = vals[utils.NutrVitaminCMg]
	n.VitaminDIU = vals[utils.NutrVitaminDIU]
	n.ZincMg = vals[utils.NutrZincMg]
	n.FolateMcg = vals[utils.NutrFolateMcg]
}
