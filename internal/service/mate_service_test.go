package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"matehub/internal/models"
	"matehub/internal/repository"

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

type emitterStub struct {
	mu    sync.Mutex
	calls []emittedNotification
}

type emittedNotification struct {
	RecipientID uint
	FromID      uint
	Type        string
}

func (e *emitterStub) Emit(_ context.Context, recipientID, fromID uint, notifType, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, emittedNotification{
		RecipientID: recipientID,
		FromID:      fromID,
		Type:        notifType,
	})
}

func (e *emitterStub) byType(notifType string) []emittedNotification {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emittedNotification
	for _, call := range e.calls {
		if call.Type == notifType {
			out = append(out, call)
		}
	}
	return out
}

func newMateServiceForTest(t *testing.T) (*MateService, *gorm.DB, *emitterStub) {
	db := setupTestDB(t)
	emitter := &emitterStub{}
	svc := NewMateService(
		repository.NewMateRepository(db),
		repository.NewUserRepository(db),
		emitter,
	)
	return svc, db, emitter
}

// expireCooldowns rewinds both sides' last-click timestamps so the next
// confirmation is allowed.
func expireCooldowns(t *testing.T, db *gorm.DB) {
	past := time.Now().Add(-25 * time.Hour)
	require.NoError(t, db.Exec(
		"UPDATE mate_requests SET last_click_low = ?, last_click_high = ?", past, past,
	).Error)
}

func TestMateService_Advance_SelfPairRejected(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	a := createTestUser(t, db, "alice")

	_, err := svc.Advance(context.Background(), a.ID, a.ID)
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestMateService_Advance_UnknownUser(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	a := createTestUser(t, db, "alice")

	_, err := svc.Advance(context.Background(), a.ID, a.ID+999)
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestMateService_Advance_CreatesRequestAndNotifies(t *testing.T) {
	svc, db, emitter := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	result, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 0, result.Status.MyProgress)
	assert.Equal(t, 0, result.Status.OtherProgress)

	// Creation stamps the creator's cooldown without consuming progress.
	assert.Equal(t, models.MateStatusCooldown, result.Status.Status)
	require.NotNil(t, result.Status.CooldownRemainingSeconds)

	requests := emitter.byType(models.NotificationTypeMateRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, b.ID, requests[0].RecipientID)
	assert.Equal(t, a.ID, requests[0].FromID)

	var req models.MateRequest
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, a.ID, req.RequesterID)
	assert.Equal(t, 0, req.ProgressLow)
	assert.Equal(t, 0, req.ProgressHigh)
}

func TestMateService_Advance_ImmediateSecondClickBlocked(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	_, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, a.ID, b.ID)
	require.Error(t, err)

	var cooldownErr *models.CooldownError
	require.ErrorAs(t, err, &cooldownErr)
	assert.Greater(t, cooldownErr.Remaining, time.Duration(0))
	assert.LessOrEqual(t, cooldownErr.Remaining, models.MateCooldown)
}

func TestMateService_Advance_CounterpartNotBlockedByCreatorCooldown(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	_, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// The counterpart has never clicked, so no cooldown applies.
	result, err := svc.Advance(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, 1, result.Status.MyProgress)
	assert.Equal(t, 0, result.Status.OtherProgress)
}

func TestMateService_GetStatus_PendingDerivation(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	none, err := svc.GetStatus(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusNone, none.Status)

	_, err = svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// Creator is inside their cooldown window.
	mine, err := svc.GetStatus(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusCooldown, mine.Status)

	// Counterpart sees a fresh request addressed to them.
	theirs, err := svc.GetStatus(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusPendingReceived, theirs.Status)
	assert.Equal(t, 0, theirs.MyProgress)

	// Once the creator's cooldown lapses the request reads as sent.
	expireCooldowns(t, db)
	mine, err = svc.GetStatus(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusPendingSent, mine.Status)
}

func TestMateService_FullProgressionToMates(t *testing.T) {
	svc, db, emitter := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	_, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)

	var final *MateAdvanceResult
	for i := 0; i < models.MateThreshold; i++ {
		expireCooldowns(t, db)
		final, err = svc.Advance(ctx, a.ID, b.ID)
		require.NoError(t, err)

		expireCooldowns(t, db)
		final, err = svc.Advance(ctx, b.ID, a.ID)
		require.NoError(t, err)
	}

	require.NotNil(t, final)
	assert.Equal(t, models.MateStatusMates, final.Status.Status)
	require.NotNil(t, final.Status.Since)

	// The request row was consumed by the promotion.
	var reqCount int64
	db.Model(&models.MateRequest{}).Count(&reqCount)
	assert.Equal(t, int64(0), reqCount)

	var mateCount int64
	db.Model(&models.Mate{}).Count(&mateCount)
	assert.Equal(t, int64(1), mateCount)

	promoted := emitter.byType(models.NotificationTypeMatePromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, a.ID, promoted[0].RecipientID)

	// Status reads as mates from both perspectives.
	status, err := svc.GetStatus(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusMates, status.Status)

	status, err = svc.GetStatus(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusMates, status.Status)
}

func TestMateService_Advance_AlreadyMatesIsSuccess(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	low, high := models.NormalizePair(a.ID, b.ID)
	since := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Create(&models.Mate{
		UserLowID: low, UserHighID: high, Since: since,
	}).Error)

	result, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, models.MateStatusMates, result.Status.Status)
	require.NotNil(t, result.Status.Since)
	assert.WithinDuration(t, since, *result.Status.Since, time.Second)
}

func TestMateService_Advance_AtThresholdSideStaysCapped(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	// One side done, cooldown long lapsed; a further click must not push
	// the counter past the threshold.
	low, high := models.NormalizePair(a.ID, b.ID)
	past := time.Now().Add(-25 * time.Hour)
	require.NoError(t, db.Create(&models.MateRequest{
		UserLowID:    low,
		UserHighID:   high,
		RequesterID:  a.ID,
		ProgressLow:  models.MateThreshold,
		ProgressHigh: 1,
		LastClickLow: &past,
	}).Error)

	result, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, models.MateThreshold, result.Status.MyProgress)
	assert.Equal(t, models.MateStatusInProgress, result.Status.Status)

	var req models.MateRequest
	require.NoError(t, db.First(&req).Error)
	assert.Equal(t, models.MateThreshold, req.ProgressLow)
	assert.Equal(t, 1, req.ProgressHigh)

	var mateCount int64
	db.Model(&models.Mate{}).Count(&mateCount)
	assert.Equal(t, int64(0), mateCount)
}

func TestMateService_Advance_StrandedCompleteRowPromoted(t *testing.T) {
	svc, db, emitter := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	// A crash between the final increment and the promotion can leave a
	// fully confirmed row behind; the next click converts it.
	low, high := models.NormalizePair(a.ID, b.ID)
	require.NoError(t, db.Create(&models.MateRequest{
		UserLowID:    low,
		UserHighID:   high,
		RequesterID:  a.ID,
		ProgressLow:  models.MateThreshold,
		ProgressHigh: models.MateThreshold,
	}).Error)

	result, err := svc.Advance(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateStatusMates, result.Status.Status)

	var reqCount, mateCount int64
	db.Model(&models.MateRequest{}).Count(&reqCount)
	db.Model(&models.Mate{}).Count(&mateCount)
	assert.Equal(t, int64(0), reqCount)
	assert.Equal(t, int64(1), mateCount)
	assert.Len(t, emitter.byType(models.NotificationTypeMatePromoted), 1)
}

// contestedCreateRepo simulates losing the first-click race: the
// counterpart's insert lands first and our own create reports the conflict.
type contestedCreateRepo struct {
	repository.MateRepository
	winnerID  uint
	contested bool
}

func (r *contestedCreateRepo) CreateRequest(ctx context.Context, req *models.MateRequest) (bool, error) {
	if r.contested {
		return r.MateRepository.CreateRequest(ctx, req)
	}
	r.contested = true

	now := time.Now()
	winner := &models.MateRequest{
		UserLowID:   req.UserLowID,
		UserHighID:  req.UserHighID,
		RequesterID: r.winnerID,
	}
	if winner.UserLowID == r.winnerID {
		winner.LastClickLow = &now
	} else {
		winner.LastClickHigh = &now
	}
	if _, err := r.MateRepository.CreateRequest(ctx, winner); err != nil {
		return false, err
	}
	return false, nil
}

func TestMateService_Advance_CreateConflictRetried(t *testing.T) {
	db := setupTestDB(t)
	emitter := &emitterStub{}
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	repo := &contestedCreateRepo{
		MateRepository: repository.NewMateRepository(db),
		winnerID:       b.ID,
	}
	svc := NewMateService(repo, repository.NewUserRepository(db), emitter)

	result, err := svc.Advance(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, 1, result.Status.MyProgress)
	assert.Equal(t, models.MateStatusCooldown, result.Status.Status)

	// Exactly one row, owned by the concurrent winner; the retry advanced it.
	var reqs []models.MateRequest
	require.NoError(t, db.Find(&reqs).Error)
	require.Len(t, reqs, 1)
	assert.Equal(t, b.ID, reqs[0].RequesterID)
	assert.Equal(t, 1, reqs[0].ProgressOf(a.ID))

	// The loser of the create race must not emit a duplicate request event.
	assert.Empty(t, emitter.byType(models.NotificationTypeMateRequest))
}

func TestMateService_Advance_ProgressNeverExceedsThreshold(t *testing.T) {
	svc, db, _ := newMateServiceForTest(t)
	ctx := context.Background()
	a := createTestUser(t, db, "alice")
	b := createTestUser(t, db, "bob")

	// One side at threshold, the other lagging: no promotion yet.
	low, high := models.NormalizePair(a.ID, b.ID)
	require.NoError(t, db.Create(&models.MateRequest{
		UserLowID:    low,
		UserHighID:   high,
		RequesterID:  a.ID,
		ProgressLow:  models.MateThreshold,
		ProgressHigh: models.MateThreshold - 2,
	}).Error)

	result, err := svc.Advance(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MateThreshold-1, result.Status.MyProgress)
	assert.Equal(t, models.MateStatusCooldown, result.Status.Status)

	var mateCount int64
	db.Model(&models.Mate{}).Count(&mateCount)
	assert.Equal(t, int64(0), mateCount)
}
