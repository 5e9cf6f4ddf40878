package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ai-native-85/tinytummy/models"
)

func TestSeedBadgesIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Badge{}))

	require.NoError(t, SeedBadges(db))

	var badges []models.Badge
	require.NoError(t, db.Find(&badges).Error)
	require.NotEmpty(t, badges)
	seeded := len(badges)

	for _, b := range badges {
		c, err := b.DecodeCriteria()
		require.NoError(t, err, "seeded criteria must decode: %s", b.Name)
		assert.NotEmpty(t, c.Type)
		assert.Positive(t, c.Value)
	}

	// A second seed run must not duplicate the catalog.
	require.NoError(t, SeedBadges(db))
	var count int64
	require.NoError(t, db.Model(&models.Badge{}).Count(&count).Error)
	assert.EqualValues(t, seeded, count)
}
