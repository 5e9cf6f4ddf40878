package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BadgeTypeStreak      = "streak"
	BadgeTypeMilestone   = "milestone"
	BadgeTypeAchievement = "achievement"
	BadgeTypeSocial      = "social"
)

// Badge criteria kinds, matched against cumulative stats or, for the last
// two, against the meal history itself.
const (
	CriteriaMealsLogged    = "meals_logged"
	CriteriaStreakDays     = "streak_days"
	CriteriaTotalPoints    = "total_points"
	CriteriaLevel          = "level"
	CriteriaMealsByMethod  = "meals_by_method"
	CriteriaTargetsMetDays = "targets_met_days"
)

// Gamification is the per (user, child) engagement record. It is only
// mutated through GamificationService, which applies every change as an
// optimistic read-modify-write keyed on Version.
type Gamification struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;uniqueIndex:uq_gam_user_child;not null" json:"user_id"`
	ChildID          uuid.UUID      `gorm:"type:uuid;uniqueIndex:uq_gam_user_child;not null" json:"child_id"`
	CurrentStreak    int            `gorm:"default:0" json:"current_streak"`
	LongestStreak    int            `gorm:"default:0" json:"longest_streak"`
	LastActivityDate *time.Time     `json:"last_activity_date,omitempty"`
	TotalMeals       int            `gorm:"default:0" json:"total_meals"`
	Points           int            `gorm:"default:0" json:"points"`
	ExperiencePoints int            `gorm:"default:0" json:"experience_points"`
	Level            int            `gorm:"default:1" json:"level"`
	Badges           datatypes.JSON `json:"badges"`
	// DailyScore is a derived 0-100 nutrition score for today's totals vs
	// the child's targets, computed on read and never persisted.
	DailyScore int       `gorm:"-" json:"daily_score"`
	Version    int       `gorm:"default:0" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (g *Gamification) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

func (g *Gamification) BadgeIDs() []string {
	var out []string
	if len(g.Badges) > 0 {
		_ = json.Unmarshal(g.Badges, &out)
	}
	return out
}

func (g *Gamification) SetBadgeIDs(ids []string) {
	b, _ := json.Marshal(ids)
	g.Badges = b
}

// Badge is a static catalog entry. Criteria holds a BadgeCriteria document.
type Badge struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	BadgeType    string         `gorm:"size:32;not null" json:"badge_type"`
	IconURL      string         `gorm:"size:500" json:"icon_url,omitempty"`
	PointsReward int            `gorm:"default:0" json:"points_reward"`
	Criteria     datatypes.JSON `gorm:"not null" json:"criteria"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (b *Badge) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}

// BadgeCriteria is the decoded criteria document. WindowDays restricts the
// stat to a rolling window; zero means lifetime. Method selects the input
// method for meals_by_method criteria.
type BadgeCriteria struct {
	Type       string `json:"type"`
	Value      int    `json:"value"`
	WindowDays int    `json:"window_days,omitempty"`
	Method     string `json:"method,omitempty"`
}

func (b *Badge) DecodeCriteria() (BadgeCriteria, error) {
	var c BadgeCriteria
	err := json.Unmarshal(b.Criteria, &c)
	return c, err
}
