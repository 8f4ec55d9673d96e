package repository

import (
	"context"
	"testing"
	"time"

	"matehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.MateRequest{},
		&models.Mate{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestMateRepository_CreateRequest_DuplicateAbsorbed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMateRepository(db)
	ctx := context.Background()

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	low, high := models.NormalizePair(a.ID, b.ID)

	created, err := repo.CreateRequest(ctx, &models.MateRequest{
		UserLowID: low, UserHighID: high, RequesterID: a.ID,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// Same pair again, regardless of who initiates.
	created, err = repo.CreateRequest(ctx, &models.MateRequest{
		UserLowID: low, UserHighID: high, RequesterID: b.ID,
	})
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	db.Model(&models.MateRequest{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMateRepository_GetRequestBetween_EitherOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMateRepository(db)
	ctx := context.Background()

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	low, high := models.NormalizePair(a.ID, b.ID)

	_, err := repo.CreateRequest(ctx, &models.MateRequest{
		UserLowID: low, UserHighID: high, RequesterID: a.ID,
	})
	require.NoError(t, err)

	req, err := repo.GetRequestBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, req)

	reversed, err := repo.GetRequestBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, reversed)
	assert.Equal(t, req.ID, reversed.ID)

	none, err := repo.GetRequestBetween(ctx, a.ID, a.ID+100)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMateRepository_AdvanceSide_CompareAndSwap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMateRepository(db)
	ctx := context.Background()

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	low, high := models.NormalizePair(a.ID, b.ID)

	req := &models.MateRequest{UserLowID: low, UserHighID: high, RequesterID: a.ID}
	_, err := repo.CreateRequest(ctx, req)
	require.NoError(t, err)

	now := time.Now()
	ok, err := repo.AdvanceSide(ctx, req.ID, models.SideLow, 0, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// A write keyed on the stale progress value must be a no-op.
	ok, err = repo.AdvanceSide(ctx, req.ID, models.SideLow, 0, now)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := repo.GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ProgressLow)
	assert.Equal(t, 0, updated.ProgressHigh)
	require.NotNil(t, updated.LastClickLow)
	assert.Nil(t, updated.LastClickHigh)

	// The other side has its own counter.
	ok, err = repo.AdvanceSide(ctx, req.ID, models.SideHigh, 0, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMateRepository_Promote_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMateRepository(db)
	ctx := context.Background()

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	low, high := models.NormalizePair(a.ID, b.ID)

	req := &models.MateRequest{
		UserLowID:    low,
		UserHighID:   high,
		RequesterID:  a.ID,
		ProgressLow:  models.MateThreshold,
		ProgressHigh: models.MateThreshold,
	}
	require.NoError(t, db.Create(req).Error)

	promoted, err := repo.Promote(ctx, req)
	require.NoError(t, err)
	assert.True(t, promoted)

	// The request row is gone and a mate row exists.
	gone, err := repo.GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	mate, err := repo.GetMateBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, mate)
	assert.WithinDuration(t, req.CreatedAt, mate.Since, time.Second)

	// A second promoter loses the delete race and must report false.
	promoted, err = repo.Promote(ctx, req)
	require.NoError(t, err)
	assert.False(t, promoted)

	var count int64
	db.Model(&models.Mate{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMateRepository_ListMates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMateRepository(db)
	ctx := context.Background()

	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")
	c := createTestUser(t, db, "carol")
	d := createTestUser(t, db, "dave")

	for _, other := range []*models.User{b, c} {
		low, high := models.NormalizePair(a.ID, other.ID)
		require.NoError(t, db.Create(&models.Mate{
			UserLowID: low, UserHighID: high, Since: time.Now(),
		}).Error)
	}

	mates, err := repo.ListMates(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mates, 2)
	assert.Equal(t, "bob", mates[0].Username)
	assert.Equal(t, "carol", mates[1].Username)

	none, err := repo.ListMates(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
