package services

import (
	"testing"

	"github.com/mipyme/backend/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRepository opens an in-memory database with the full schema.
func newTestRepository(t *testing.T) *repository.GORMRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := repository.NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}
