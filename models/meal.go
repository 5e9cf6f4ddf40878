package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

const (
	InputMethodText  = "text"
	InputMethodVoice = "voice"
	InputMethodImage = "image"
)

func ValidMealType(s string) bool {
	switch s {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

func ValidInputMethod(s string) bool {
	switch s {
	case InputMethodText, InputMethodVoice, InputMethodImage:
		return true
	}
	return false
}

// Nutrients is the canonical 12-field nutrient set. Every field is
// non-negative after normalization; see utils.SanitizeNutrients.
type Nutrients struct {
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	FatG       float64 `json:"fat_g"`
	CarbsG     float64 `json:"carbs_g"`
	FiberG     float64 `json:"fiber_g"`
	IronMg     float64 `json:"iron_mg"`
	CalciumMg  float64 `json:"calcium_mg"`
	VitaminAIU float64 `json:"vitamin_a_iu"`
	VitaminCMg float64 `json:"vitamin_c_mg"`
	VitaminDIU float64 `json:"vitamin_d_iu"`
	ZincMg     float64 `json:"zinc_mg"`
	FolateMcg  float64 `json:"folate_mcg"`
}

// One logged meal with its normalized analysis snapshot.
// MealDate is always derived from MealTime (UTC date portion) and is the key
// for all aggregation and streak logic.
type Meal struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID           uuid.UUID      `gorm:"type:uuid;index;not null" json:"child_id"`
	UserID            uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	MealType          string         `gorm:"size:32;not null" json:"meal_type"`
	MealTime          time.Time      `gorm:"not null" json:"meal_time"`
	MealDate          time.Time      `gorm:"index;not null" json:"meal_date"`
	InputMethod       string         `gorm:"size:32;not null" json:"input_method"`
	RawInput          string         `gorm:"type:text;not null" json:"raw_input"`
	Analysis          datatypes.JSON `json:"analysis,omitempty"`
	FoodItems         datatypes.JSON `gorm:"not null" json:"food_items"`
	EstimatedQuantity string         `json:"estimated_quantity,omitempty"`
	Nutrients         `gorm:"embedded" json:"nutrients"`
	ConfidenceScore   float64   `json:"confidence_score"`
	LowConfidence     bool      `json:"low_confidence"`
	NeedsReview       bool      `json:"needs_review"`
	Notes             string    `gorm:"type:text" json:"notes,omitempty"`
	ImageURL          string    `json:"image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (m *Meal) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

func (m *Meal) FoodItemList() []string {
	var out []string
	if len(m.FoodItems) > 0 {
		_ = json.Unmarshal(m.FoodItems, &out)
	}
	return out
}
