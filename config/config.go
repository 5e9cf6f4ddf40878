package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
)

var DB *gorm.DB

func InitDB() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.Child{},
		&models.Meal{},
		&models.Gamification{},
		&models.Badge{},
		&models.NutritionGuideline{},
		&models.ChatSession{},
		&models.ChatMessage{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	if err := SeedBadges(DB); err != nil {
		log.Fatalf("badge seed failed: %v", err)
	}
}

// SeedBadges inserts the default badge catalog when the table is empty.
func SeedBadges(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Badge{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []struct {
		name, desc, badgeType string
		reward                int
		criteria              models.BadgeCriteria
	}{
		{"First Bite", "Log your first meal", models.BadgeTypeMilestone, 10,
			models.BadgeCriteria{Type: models.CriteriaMealsLogged, Value: 1}},
		{"Week Warrior", "Log meals 7 days in a row", models.BadgeTypeStreak, 50,
			models.BadgeCriteria{Type: models.CriteriaStreakDays, Value: 7}},
		{"Streak Master", "Log meals 30 days in a row", models.BadgeTypeStreak, 200,
			models.BadgeCriteria{Type: models.CriteriaStreakDays, Value: 30}},
		{"Century Club", "Log 100 meals", models.BadgeTypeMilestone, 100,
			models.BadgeCriteria{Type: models.CriteriaMealsLogged, Value: 100}},
		{"Point Collector", "Earn 500 points", models.BadgeTypeAchievement, 50,
			models.BadgeCriteria{Type: models.CriteriaTotalPoints, Value: 500}},
		{"Busy Week", "Log 15 meals within 7 days", models.BadgeTypeAchievement, 30,
			models.BadgeCriteria{Type: models.CriteriaMealsLogged, Value: 15, WindowDays: 7}},
		{"Level Five", "Reach level 5", models.BadgeTypeAchievement, 50,
			models.BadgeCriteria{Type: models.CriteriaLevel, Value: 5}},
		{"Balanced Day", "Meet every daily nutrient target", models.BadgeTypeAchievement, 40,
			models.BadgeCriteria{Type: models.CriteriaTargetsMetDays, Value: 1}},
		{"Shutterbug", "Log 10 meals by photo", models.BadgeTypeAchievement, 30,
			models.BadgeCriteria{Type: models.CriteriaMealsByMethod, Value: 10, Method: models.InputMethodImage}},
	}

	for _, d := range defaults {
		raw, err := json.Marshal(d.criteria)
		if err != nil {
			return err
		}
		badge := models.Badge{
			Name:         d.name,
			Description:  d.desc,
			BadgeType:    d.badgeType,
			PointsReward: d.reward,
			Criteria:     raw,
		}
		if err := db.Create(&badge).Error; err != nil {
			return err
		}
	}
	return nil
}
