package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GuidelineTypeGrowth      = "growth"
	GuidelineTypeNutrition   = "nutrition"
	GuidelineTypeDevelopment = "development"
	GuidelineTypeFeeding     = "feeding"
	GuidelineTypeAllergies   = "allergies"
)

// NutritionGuideline is read-only from this service's perspective; rows are
// loaded by an external content-management process and indexed into the
// vector store at startup.
type NutritionGuideline struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	GuidelineText string    `gorm:"type:text;not null" json:"guideline_text"`
	Source        string    `gorm:"size:255;not null" json:"source"`
	Region        string    `gorm:"size:100" json:"region,omitempty"`
	Language      string    `gorm:"size:10;default:en" json:"language"`
	AgeMinMonths  *int      `json:"age_min_months,omitempty"`
	AgeMaxMonths  *int      `json:"age_max_months,omitempty"`
	GuidelineType string    `gorm:"size:32;not null" json:"guideline_type"`
	EmbeddingID   string    `gorm:"size:255" json:"embedding_id,omitempty"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (g *NutritionGuideline) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

// AppliesToAge reports whether the guideline's age band contains ageMonths.
// An open bound matches everything on that side.
func (g *NutritionGuideline) AppliesToAge(ageMonths int) bool {
	if g.AgeMinMonths != nil && ageMonths < *g.AgeMinMonths {
		return false
	}
	if g.AgeMaxMonths != nil && ageMonths > *g.AgeMaxMonths {
		return false
	}
	return true
}
