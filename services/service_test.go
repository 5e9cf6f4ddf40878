package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ai-native-85/tinytummy/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Child{},
		&models.Meal{},
		&models.Gamification{},
		&models.Badge{},
		&models.NutritionGuideline{},
		&models.ChatSession{},
		&models.ChatMessage{},
	))
	return db
}

func seedUserChild(t *testing.T, db *gorm.DB, dob time.Time) (uuid.UUID, *models.Child) {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", Password: "x", FullName: "Test Parent"}
	require.NoError(t, db.Create(&user).Error)

	child := models.Child{UserID: user.ID, Name: "Mia", DateOfBirth: dob, Language: "en"}
	require.NoError(t, db.Create(&child).Error)
	return user.ID, &child
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d.UTC()
}

func f64(v float64) *float64 { return &v }

// fakeAnalyzer scripts analysis outcomes per call.
type fakeAnalyzer struct {
	failures int // number of leading calls that error
	analysis *Analysis
	calls    []bool // strict flag per call
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, rawInput string, child *models.Child, strict bool) (*Analysis, error) {
	f.calls = append(f.calls, strict)
	if len(f.calls) <= f.failures {
		return nil, ErrAnalysisMalformed
	}
	return f.analysis, nil
}

func goodAnalysis() *Analysis {
	return &Analysis{
		DetectedFoods:       []string{"oatmeal", "banana"},
		EstimatedQuantities: map[string]string{"oatmeal": "1 bowl"},
		NutritionBreakdown: map[string]*float64{
			"calories":  f64(180.456),
			"protein_g": f64(5.234),
			"iron_mg":   f64(1.2),
		},
		ConfidenceScore: f64(0.9),
		AnalysisNotes:   "Typical toddler breakfast.",
	}
}

type fakeRetriever struct {
	hits []GuidelineHit
	err  error
}

func (f *fakeRetriever) Search(ctx context.Context, query string, filter GuidelineFilter, k int) ([]GuidelineHit, error) {
	return f.hits, f.err
}

type fakeCompleter struct {
	response string
	blocks   []ContextBlock
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, blocks []ContextBlock, query string) (string, error) {
	f.blocks = blocks
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func setTestTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}
