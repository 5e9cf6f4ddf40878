package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Child struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	Name                string         `gorm:"not null" json:"name"`
	DateOfBirth         time.Time      `gorm:"not null" json:"date_of_birth"`
	Gender              string         `gorm:"size:16" json:"gender"`
	Region              string         `gorm:"size:100" json:"region"`
	Language            string         `gorm:"size:10;default:en" json:"language"`
	Allergies           datatypes.JSON `json:"allergies"`
	DietaryRestrictions datatypes.JSON `json:"dietary_restrictions"`
	CustomTargets       datatypes.JSON `json:"custom_targets,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (c *Child) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// AgeMonths computes the child's age in whole months at the given instant.
// Partial months are floored, matching how guideline age bands are keyed.
func (c *Child) AgeMonths(at time.Time) int {
	dob := c.DateOfBirth
	months := (at.Year()-dob.Year())*12 + int(at.Month()) - int(dob.Month())
	if at.Day() < dob.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// AllergyList decodes the allergies JSON column; empty on malformed content.
func (c *Child) AllergyList() []string {
	var out []string
	if len(c.Allergies) > 0 {
		_ = json.Unmarshal(c.Allergies, &out)
	}
	return out
}

func (c *Child) RestrictionList() []string {
	var out []string
	if len(c.DietaryRestrictions) > 0 {
		_ = json.Unmarshal(c.DietaryRestrictions, &out)
	}
	return out
}

// TargetOverrides decodes per-child nutrient target overrides, applied on
// top of the age-banded defaults.
func (c *Child) TargetOverrides() map[string]float64 {
	out := map[string]float64{}
	if len(c.CustomTargets) > 0 {
		_ = json.Unmarshal(c.CustomTargets, &out)
	}
	return out
}
