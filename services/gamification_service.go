package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

const (
	pointsPerMeal    = 10
	xpPerLevel       = 100
	maxWriteAttempts = 3
)

func levelFor(xp int) int { return xp/xpPerLevel + 1 }

// GamificationService owns all mutation of Gamification records. Every write
// is an optimistic read-modify-write keyed on the record version: concurrent
// meal logs (including offline-sync batches) race on the same streak row and
// lost updates must not occur.
type GamificationService struct {
	db     *gorm.DB
	hub    *RealtimeHub
	logger *zap.Logger
}

func NewGamificationService(db *gorm.DB, hub *RealtimeHub, logger *zap.Logger) *GamificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GamificationService{db: db, hub: hub, logger: logger}
}

// RecordActivity applies one activity event for the meal's calendar date.
// Same-day repeats are idempotent for the streak, backdated events never
// move the streak or last_activity_date backward, and a gap resets the
// streak to 1. Conflicting writers retry internally.
func (s *GamificationService) RecordActivity(ctx context.Context, userID, childID uuid.UUID, day time.Time) error {
	day = utils.CalendarDate(day)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.load(ctx, userID, childID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		isNew := g == nil
		if isNew {
			g = &models.Gamification{UserID: userID, ChildID: childID, Level: 1}
			g.SetBadgeIDs([]string{})
		} else if corrupted(g) {
			// Never trust a corrupt record; rebuild it from activity history.
			// The meal that fired this event is already persisted, so the
			// replay covers it; re-applying the event here would count it
			// twice.
			s.logger.Warn("gamification state corruption detected; recomputing",
				zap.String("child_id", childID.String()),
				zap.Int("current_streak", g.CurrentStreak),
				zap.Int("longest_streak", g.LongestStreak))
			return s.Recompute(ctx, userID, childID)
		}

		streakBefore := g.CurrentStreak
		applyActivity(g, day)
		g.TotalMeals++
		g.Points += pointsPerMeal
		g.ExperiencePoints += pointsPerMeal
		g.Level = levelFor(g.ExperiencePoints)

		newBadges, err := s.evaluateBadges(ctx, g)
		if err != nil {
			return err
		}

		ok, err := s.store(ctx, g, isNew)
		if err != nil {
			return err
		}
		if !ok {
			continue // lost the race, re-read and retry
		}

		s.notify(userID, g, streakBefore, newBadges)
		return nil
	}

	return ErrConcurrencyConflict
}

// applyActivity is the streak transition table over calendar dates.
func applyActivity(g *models.Gamification, day time.Time) {
	if g.LastActivityDate == nil {
		g.CurrentStreak = 1
		g.LastActivityDate = &day
	} else {
		last := utils.CalendarDate(*g.LastActivityDate)
		switch {
		case day.Equal(last):
			// same-day repeat: streak unchanged
		case day.Equal(last.AddDate(0, 0, 1)):
			g.CurrentStreak++
			g.LastActivityDate = &day
		case day.After(last):
			// gap: streak resets, it does not partially decay
			g.CurrentStreak = 1
			g.LastActivityDate = &day
		default:
			// backdated event (offline sync, edits): cumulative stats only,
			// last_activity_date is monotonic
		}
	}

	if g.CurrentStreak > g.LongestStreak {
		g.LongestStreak = g.CurrentStreak
	}
}

// Recompute rebuilds streak state from the complete activity-date history.
// Used after meal edits/deletes and on detected corruption: incremental
// reversal of transitions is unsound given same-day idempotence and
// out-of-order tolerance. Earned badges are kept; points replay from the
// meal count plus kept badge rewards.
func (s *GamificationService) Recompute(ctx context.Context, userID, childID uuid.UUID) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.load(ctx, userID, childID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		isNew := g == nil
		if isNew {
			g = &models.Gamification{UserID: userID, ChildID: childID, Level: 1}
			g.SetBadgeIDs([]string{})
		}

		var meals []models.Meal
		if err := s.db.WithContext(ctx).
			Select("id", "meal_date").
			Where("user_id = ? AND child_id = ?", userID, childID).
			Order("meal_date ASC, meal_time ASC").
			Find(&meals).Error; err != nil {
			return err
		}

		g.CurrentStreak = 0
		g.LongestStreak = 0
		g.LastActivityDate = nil
		g.TotalMeals = len(meals)
		for _, m := range meals {
			applyActivity(g, utils.CalendarDate(m.MealDate))
		}

		g.Points = g.TotalMeals * pointsPerMeal
		g.ExperiencePoints = g.TotalMeals * pointsPerMeal
		if err := s.addKeptBadgeRewards(ctx, g); err != nil {
			return err
		}
		g.Level = levelFor(g.ExperiencePoints)

		newBadges, err := s.evaluateBadges(ctx, g)
		if err != nil {
			return err
		}

		ok, err := s.store(ctx, g, isNew)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		s.notify(userID, g, -1, newBadges)
		return nil
	}

	return ErrConcurrencyConflict
}

// Summary returns the current snapshot with today's derived nutrition
// score, repairing corrupt state first. A child with no activity yet gets a
// zero-valued snapshot; the record itself is created lazily on first
// activity.
func (s *GamificationService) Summary(ctx context.Context, userID, childID uuid.UUID) (*models.Gamification, error) {
	g, err := s.load(ctx, userID, childID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		empty := &models.Gamification{UserID: userID, ChildID: childID, Level: 1}
		empty.SetBadgeIDs([]string{})
		return empty, nil
	}
	if err != nil {
		return nil, err
	}

	if corrupted(g) {
		s.logger.Warn("gamification state corruption detected on read; recomputing",
			zap.String("child_id", childID.String()))
		if err := s.Recompute(ctx, userID, childID); err != nil {
			return nil, err
		}
		if g, err = s.load(ctx, userID, childID); err != nil {
			return nil, err
		}
	}

	if score, err := s.dailyScore(ctx, userID, childID); err != nil {
		s.logger.Warn("daily nutrition score unavailable", zap.Error(err))
	} else {
		g.DailyScore = score
	}
	return g, nil
}

func (s *GamificationService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := s.db.WithContext(ctx).Order("points_reward ASC").Find(&badges).Error
	return badges, err
}

func corrupted(g *models.Gamification) bool {
	return g.CurrentStreak < 0 || g.LongestStreak < g.CurrentStreak || g.Points < 0
}

func (s *GamificationService) load(ctx context.Context, userID, childID uuid.UUID) (*models.Gamification, error) {
	var g models.Gamification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ?", userID, childID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// store persists the record. Returns false when the optimistic version check
// (or the unique user/child index on create) lost a race.
func (s *GamificationService) store(ctx context.Context, g *models.Gamification, isNew bool) (bool, error) {
	if isNew {
		err := s.db.WithContext(ctx).Create(g).Error
		if err != nil {
			if isUniqueViolation(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Gamification{}).
		Where("id = ? AND version = ?", g.ID, g.Version).
		Updates(map[string]interface{}{
			"current_streak":     g.CurrentStreak,
			"longest_streak":     g.LongestStreak,
			"last_activity_date": g.LastActivityDate,
			"total_meals":        g.TotalMeals,
			"points":             g.Points,
			"experience_points":  g.ExperiencePoints,
			"level":              g.Level,
			"badges":             g.Badges,
			"version":            g.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Driver-specific fallbacks (pgx "23505", sqlite "UNIQUE constraint").
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key")
}

// addKeptBadgeRewards re-applies the point rewards of already-earned badges
// during a history replay; badges are never revoked by recomputation.
func (s *GamificationService) addKeptBadgeRewards(ctx context.Context, g *models.Gamification) error {
	ids := g.BadgeIDs()
	if len(ids) == 0 {
		return nil
	}
	var badges []models.Badge
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&badges).Error; err != nil {
		return err
	}
	for _, b := range badges {
		g.Points += b.PointsReward
		g.ExperiencePoints += b.PointsReward
	}
	return nil
}

// evaluateBadges awards every catalog badge whose criteria newly hold
// against the updated cumulative stats. Rewards feed both points and
// experience; level is recomputed afterwards.
func (s *GamificationService) evaluateBadges(ctx context.Context, g *models.Gamification) ([]models.Badge, error) {
	var catalog []models.Badge
	if err := s.db.WithContext(ctx).Find(&catalog).Error; err != nil {
		return nil, err
	}

	earned := g.BadgeIDs()
	earnedSet := make(map[string]struct{}, len(earned))
	for _, id := range earned {
		earnedSet[id] = struct{}{}
	}

	var newBadges []models.Badge
	for _, b := range catalog {
		if _, ok := earnedSet[b.ID.String()]; ok {
			continue
		}
		met, err := s.criteriaMet(ctx, b, g)
		if err != nil {
			s.logger.Warn("skipping badge with bad criteria",
				zap.String("badge", b.Name), zap.Error(err))
			continue
		}
		if met {
			earned = append(earned, b.ID.String())
			earnedSet[b.ID.String()] = struct{}{}
			g.Points += b.PointsReward
			g.ExperiencePoints += b.PointsReward
			newBadges = append(newBadges, b)
		}
	}

	if len(newBadges) > 0 {
		g.SetBadgeIDs(earned)
		g.Level = levelFor(g.ExperiencePoints)
	}
	return newBadges, nil
}

// criteriaMet evaluates a badge predicate. Lifetime cumulative stats are the
// default; a criteria window_days restricts meals_logged to a rolling window.
func (s *GamificationService) criteriaMet(ctx context.Context, b models.Badge, g *models.Gamification) (bool, error) {
	c, err := b.DecodeCriteria()
	if err != nil {
		return false, err
	}

	switch c.Type {
	case models.CriteriaMealsLogged:
		if c.WindowDays > 0 {
			since := utils.CalendarDate(timeNow()).AddDate(0, 0, -c.WindowDays)
			var n int64
			if err := s.db.WithContext(ctx).Model(&models.Meal{}).
				Where("user_id = ? AND child_id = ? AND meal_date >= ?", g.UserID, g.ChildID, since).
				Count(&n).Error; err != nil {
				return false, err
			}
			return n >= int64(c.Value), nil
		}
		return g.TotalMeals >= c.Value, nil
	case models.CriteriaStreakDays:
		return g.LongestStreak >= c.Value, nil
	case models.CriteriaTotalPoints:
		return g.Points >= c.Value, nil
	case models.CriteriaLevel:
		return g.Level >= c.Value, nil
	case models.CriteriaMealsByMethod:
		if !models.ValidInputMethod(c.Method) {
			return false, fmt.Errorf("meals_by_method criteria has invalid method %q", c.Method)
		}
		q := s.db.WithContext(ctx).Model(&models.Meal{}).
			Where("user_id = ? AND child_id = ? AND input_method = ?", g.UserID, g.ChildID, c.Method)
		if c.WindowDays > 0 {
			since := utils.CalendarDate(timeNow()).AddDate(0, 0, -c.WindowDays)
			q = q.Where("meal_date >= ?", since)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return false, err
		}
		return n >= int64(c.Value), nil
	case models.CriteriaTargetsMetDays:
		n, err := s.targetsMetDays(ctx, g, c.WindowDays)
		if err != nil {
			return false, err
		}
		return n >= c.Value, nil
	}
	return false, nil
}

// targetsMetDays counts the calendar days whose summed nutrients meet every
// positive target for the child's current age band.
func (s *GamificationService) targetsMetDays(ctx context.Context, g *models.Gamification, windowDays int) (int, error) {
	targets, err := s.childTargets(ctx, g.ChildID)
	if err != nil {
		return 0, err
	}

	q := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ?", g.UserID, g.ChildID)
	if windowDays > 0 {
		since := utils.CalendarDate(timeNow()).AddDate(0, 0, -windowDays)
		q = q.Where("meal_date >= ?", since)
	}
	var meals []models.Meal
	if err := q.Find(&meals).Error; err != nil {
		return 0, err
	}

	byDay := map[string]models.Nutrients{}
	for _, m := range meals {
		key := m.MealDate.UTC().Format(utils.DateLayout)
		sums := byDay[key]
		addNutrients(&sums, m.Nutrients)
		byDay[key] = sums
	}

	met := 0
	for _, sums := range byDay {
		if meetsTargets(sums, targets) {
			met++
		}
	}
	return met, nil
}

func (s *GamificationService) childTargets(ctx context.Context, childID uuid.UUID) (map[string]float64, error) {
	var child models.Child
	if err := s.db.WithContext(ctx).Where("id = ?", childID).First(&child).Error; err != nil {
		return nil, err
	}
	targets := utils.TargetsForAge(child.AgeMonths(timeNow()), child.Region)
	for k, v := range child.TargetOverrides() {
		if v >= 0 {
			targets[k] = v
		}
	}
	return targets, nil
}

// dailyScore is a 0-100 nutrition score for today: the mean of each targeted
// nutrient's intake ratio, capped at 100% per nutrient so one oversized
// value cannot mask deficits elsewhere.
func (s *GamificationService) dailyScore(ctx context.Context, userID, childID uuid.UUID) (int, error) {
	targets, err := s.childTargets(ctx, childID)
	if err != nil {
		return 0, err
	}

	day := utils.CalendarDate(timeNow())
	var meals []models.Meal
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND child_id = ? AND meal_date = ?", userID, childID, day).
		Find(&meals).Error; err != nil {
		return 0, err
	}
	if len(meals) == 0 {
		return 0, nil
	}

	var sums models.Nutrients
	for _, m := range meals {
		addNutrients(&sums, m.Nutrients)
	}

	total, count := 0.0, 0
	for key, target := range targets {
		if target <= 0 {
			continue
		}
		ratio := nutrientValue(sums, key) / target
		if ratio > 1 {
			ratio = 1
		}
		total += ratio
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return int(math.Round(total / float64(count) * 100)), nil
}

func meetsTargets(n models.Nutrients, targets map[string]float64) bool {
	for key, target := range targets {
		if target > 0 && nutrientValue(n, key) < target {
			return false
		}
	}
	return true
}

func nutrientValue(n models.Nutrients, key string) float64 {
	switch key {
	case utils.NutrCalories:
		return n.Calories
	case utils.NutrProteinG:
		return n.ProteinG
	case utils.NutrFatG:
		return n.FatG
	case utils.NutrCarbsG:
		return n.CarbsG
	case utils.NutrFiberG:
		return n.FiberG
	case utils.NutrIronMg:
		return n.IronMg
	case utils.NutrCalciumMg:
		return n.CalciumMg
	case utils.NutrVitaminAIU:
		return n.VitaminAIU
	case utils.NutrVitaminCMg:
		return n.VitaminCMg
	case utils.NutrVitaminDIU:
		return n.VitaminDIU
	case utils.NutrZincMg:
		return n.ZincMg
	case utils.NutrFolateMcg:
		return n.FolateMcg
	}
	return 0
}

func addNutrients(dst *models.Nutrients, src models.Nutrients) {
	dst.Calories += src.Calories
	dst.ProteinG += src.ProteinG
	dst.FatG += src.FatG
	dst.CarbsG += src.CarbsG
	dst.FiberG += src.FiberG
	dst.IronMg += src.IronMg
	dst.CalciumMg += src.CalciumMg
	dst.VitaminAIU += src.VitaminAIU
	dst.VitaminCMg += src.VitaminCMg
	dst.VitaminDIU += src.VitaminDIU
	dst.ZincMg += src.ZincMg
	dst.FolateMcg += src.FolateMcg
}

func (s *GamificationService) notify(userID uuid.UUID, g *models.Gamification, streakBefore int, newBadges []models.Badge) {
	if s.hub == nil {
		return
	}
	if streakBefore >= 0 && g.CurrentStreak != streakBefore {
		s.hub.Broadcast(userID, GamificationEvent{
			Type:          "streak_updated",
			ChildID:       g.ChildID,
			CurrentStreak: g.CurrentStreak,
			LongestStreak: g.LongestStreak,
		})
	}
	for _, b := range newBadges {
		s.hub.Broadcast(userID, GamificationEvent{
			Type:      "badge_earned",
			ChildID:   g.ChildID,
			BadgeID:   b.ID,
			BadgeName: b.Name,
			Points:    b.PointsReward,
		})
	}
}
