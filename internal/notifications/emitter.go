package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"matehub/internal/middleware"
	"matehub/internal/models"
	"matehub/internal/repository"

	"github.com/google/uuid"
)

// Emitter persists notifications and pushes them over Redis. Both steps are
// best-effort: a failure is logged and counted but never surfaces to the
// operation that triggered the notification.
type Emitter struct {
	repo     repository.NotificationRepository
	notifier *Notifier
	logger   *slog.Logger
}

// NewEmitter creates an Emitter backed by the given repository and notifier.
func NewEmitter(repo repository.NotificationRepository, notifier *Notifier, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = middleware.Logger
	}
	return &Emitter{repo: repo, notifier: notifier, logger: logger}
}

// Emit records and publishes a notification to the recipient. Each emission
// carries a fresh event id so downstream consumers can deduplicate.
func (e *Emitter) Emit(ctx context.Context, recipientID, fromID uint, notifType, message string) {
	n := &models.Notification{
		EventID:     uuid.NewString(),
		RecipientID: recipientID,
		FromID:      fromID,
		Type:        notifType,
		Message:     message,
	}

	if err := e.repo.Create(ctx, n); err != nil {
		middleware.NotificationEmits.WithLabelValues(notifType, "store_error").Inc()
		e.logger.WarnContext(ctx, "failed to store notification",
			slog.String("type", notifType),
			slog.Uint64("recipient_id", uint64(recipientID)),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event_id": n.EventID,
		"type":     notifType,
		"from_id":  fromID,
		"message":  message,
	})
	if err != nil {
		middleware.NotificationEmits.WithLabelValues(notifType, "marshal_error").Inc()
		e.logger.WarnContext(ctx, "failed to marshal notification payload",
			slog.String("type", notifType),
			slog.String("error", err.Error()),
		)
		return
	}

	if e.notifier != nil {
		if err := e.notifier.PublishUser(ctx, recipientID, string(payload)); err != nil {
			middleware.NotificationEmits.WithLabelValues(notifType, "publish_error").Inc()
			e.logger.WarnContext(ctx, "failed to publish notification",
				slog.String("type", notifType),
				slog.Uint64("recipient_id", uint64(recipientID)),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	middleware.NotificationEmits.WithLabelValues(notifType, "ok").Inc()
}
