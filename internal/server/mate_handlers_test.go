package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"matehub/internal/config"
	"matehub/internal/models"

	"github.com/gofiber/fiber/v2"
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

// newTestApp builds a fiber app with routes wired against an in-memory
// database. Auth is replaced by a middleware injecting the given user ID.
func newTestApp(t *testing.T, db *gorm.DB, userID uint) *fiber.App {
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		JWTSecret: "test-secret-key-12345678901234567890123456789012",
		Env:       "test",
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})

	api := app.Group("/api")
	mates := api.Group("/mates")
	mates.Get("/", srv.GetMates)
	mates.Get("/requests", srv.GetMateRequests)
	mates.Get("/status/:userId", srv.GetMateStatus)
	mates.Post("/advance/:userId", srv.AdvanceMate)

	conversations := api.Group("/conversations")
	conversations.Get("/", srv.GetConversations)
	conversations.Post("/direct/:userId", srv.ResolveDirectConversation)
	conversations.Get("/:id/messages", srv.GetMessages)
	conversations.Post("/:id/messages", srv.SendMessage)

	notifs := api.Group("/notifications")
	notifs.Get("/", srv.GetNotifications)
	notifs.Get("/unread-count", srv.GetUnreadCount)
	notifs.Post("/:id/read", srv.MarkNotificationRead)

	return app
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func decodeStatus(t *testing.T, resp *http.Response) models.MateStatus {
	var status models.MateStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	_ = resp.Body.Close()
	return status
}

func TestAdvanceMate_CreatesRequest(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")
	app := newTestApp(t, db, a.ID)

	req := httptest.NewRequest(http.MethodPost, "/api/mates/advance/"+itoa(b.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	status := decodeStatus(t, resp)
	assert.Equal(t, 0, status.MyProgress)
	assert.Equal(t, models.MateThreshold, status.Threshold)
}

func TestAdvanceMate_CooldownReturns429(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")
	app := newTestApp(t, db, a.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/"+itoa(b.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/"+itoa(b.ID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, "COOLDOWN_ACTIVE", body["code"])
	assert.Greater(t, body["retry_after_seconds"], float64(0))
}

func TestAdvanceMate_SelfAndUnknownTargets(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice")
	app := newTestApp(t, db, a.ID)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/"+itoa(a.ID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/99999", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestGetMateStatus_ViewsPerSide(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")

	appA := newTestApp(t, db, a.ID)
	appB := newTestApp(t, db, b.ID)

	resp, err := appA.Test(httptest.NewRequest(http.MethodPost, "/api/mates/advance/"+itoa(b.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = appA.Test(httptest.NewRequest(http.MethodGet, "/api/mates/status/"+itoa(b.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.MateStatusCooldown, decodeStatus(t, resp).Status)

	resp, err = appB.Test(httptest.NewRequest(http.MethodGet, "/api/mates/status/"+itoa(a.ID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.MateStatusPendingReceived, decodeStatus(t, resp).Status)
}

func TestGetMates_ListsPromotedOnly(t *testing.T) {
	db := setupTestDB(t)
	a := createUser(t, db, "alice")
	b := createUser(t, db, "bob")
	c := createUser(t, db, "carol")
	app := newTestApp(t, db, a.ID)

	low, high := models.NormalizePair(a.ID, b.ID)
	require.NoError(t, db.Create(&models.Mate{
		UserLowID: low, UserHighID: high, Since: time.Now(),
	}).Error)

	// An in-flight request must not appear in the mates list.
	low, high = models.NormalizePair(a.ID, c.ID)
	require.NoError(t, db.Create(&models.MateRequest{
		UserLowID: low, UserHighID: high, RequesterID: a.ID,
	}).Error)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/mates/", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mates []models.UserSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mates))
	_ = resp.Body.Close()
	require.Len(t, mates, 1)
	assert.Equal(t, "bob", mates[0].Username)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
