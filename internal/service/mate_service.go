// Package service contains business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matehub/internal/middleware"
	"matehub/internal/models"
	"matehub/internal/observability"
	"matehub/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// errConcurrentUpdate signals that a compare-and-swap write lost to a
// concurrent writer and the caller should re-resolve the pair state.
var errConcurrentUpdate = errors.New("concurrent update, state re-resolved")

// NotificationEmitter emits best-effort notifications to a recipient.
type NotificationEmitter interface {
	Emit(ctx context.Context, recipientID, fromID uint, notifType, message string)
}

// MateService implements the mates progression: repeated mutual confirmation
// gated by a per-user cooldown, ending in an atomic promotion.
type MateService struct {
	mateRepo repository.MateRepository
	userRepo repository.UserRepository
	emitter  NotificationEmitter
}

// NewMateService returns a new MateService.
func NewMateService(mateRepo repository.MateRepository, userRepo repository.UserRepository, emitter NotificationEmitter) *MateService {
	return &MateService{
		mateRepo: mateRepo,
		userRepo: userRepo,
		emitter:  emitter,
	}
}

// MateAdvanceResult is the outcome of an Advance call.
type MateAdvanceResult struct {
	// Created is true when this call created the request row.
	Created bool
	Status  *models.MateStatus
}

func (s *MateService) validatePair(ctx context.Context, myID, otherID uint) error {
	if myID == otherID {
		return models.NewValidationError("Cannot mate with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return err
	}
	return nil
}

// GetStatus returns the caller-relative progression state for a pair.
func (s *MateService) GetStatus(ctx context.Context, myID, otherID uint) (*models.MateStatus, error) {
	if err := s.validatePair(ctx, myID, otherID); err != nil {
		return nil, err
	}

	mate, err := s.mateRepo.GetMateBetween(ctx, myID, otherID)
	if err != nil {
		return nil, err
	}
	if mate != nil {
		return mateStatus(mate), nil
	}

	req, err := s.mateRepo.GetRequestBetween(ctx, myID, otherID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return &models.MateStatus{Status: models.MateStatusNone, Threshold: models.MateThreshold}, nil
	}

	return statusFromRequest(req, myID, time.Now()), nil
}

// Advance records one confirming action by the caller towards the pair
// becoming mates. Concurrent callers are reconciled by compare-and-swap
// writes plus one re-resolve retry; duplicate work is absorbed, never
// surfaced as an error.
func (s *MateService) Advance(ctx context.Context, myID, otherID uint) (*MateAdvanceResult, error) {
	span, ctx := observability.NewSpan(ctx, "MateService.Advance")
	defer span.End()
	span.AddAttributes(
		attribute.Int64("mate.my_id", int64(myID)),
		attribute.Int64("mate.other_id", int64(otherID)),
	)

	if err := s.validatePair(ctx, myID, otherID); err != nil {
		span.SetError(err)
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.advanceOnce(ctx, myID, otherID)
		if errors.Is(err, errConcurrentUpdate) {
			continue
		}
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return result, nil
	}

	// Two consecutive lost races on the same pair; report current state.
	status, err := s.GetStatus(ctx, myID, otherID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return &MateAdvanceResult{Status: status}, nil
}

func (s *MateService) advanceOnce(ctx context.Context, myID, otherID uint) (*MateAdvanceResult, error) {
	mate, err := s.mateRepo.GetMateBetween(ctx, myID, otherID)
	if err != nil {
		return nil, err
	}
	if mate != nil {
		middleware.MateAdvances.WithLabelValues("already_mates").Inc()
		return &MateAdvanceResult{Status: mateStatus(mate)}, nil
	}

	now := time.Now()
	req, err := s.mateRepo.GetRequestBetween(ctx, myID, otherID)
	if err != nil {
		return nil, err
	}

	if req == nil {
		return s.createRequest(ctx, myID, otherID, now)
	}

	if remaining := cooldownRemaining(req, myID, now); remaining > 0 {
		middleware.MateAdvances.WithLabelValues("cooldown").Inc()
		return nil, &models.CooldownError{Remaining: remaining}
	}

	prev := req.ProgressOf(myID)
	if prev >= models.MateThreshold {
		// Own side is already at the threshold; the pair is waiting on the
		// counterpart, so this click must not push the counter past it.
		if req.Complete() {
			return s.promotePair(ctx, req, myID, otherID)
		}
		middleware.MateAdvances.WithLabelValues("at_threshold").Inc()
		return &MateAdvanceResult{Status: statusFromRequest(req, myID, now)}, nil
	}

	ok, err := s.mateRepo.AdvanceSide(ctx, req.ID, req.SideOf(myID), prev, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else advanced or promoted between our read and write.
		return nil, errConcurrentUpdate
	}

	if prev+1 >= models.MateThreshold {
		// Re-read so the promotion decision uses the counterpart's latest
		// progress, not the possibly stale value from before our write.
		fresh, err := s.mateRepo.GetRequestByID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		if fresh != nil && fresh.Complete() {
			return s.promotePair(ctx, fresh, myID, otherID)
		}
	}

	middleware.MateAdvances.WithLabelValues("advanced").Inc()
	updated, err := s.mateRepo.GetRequestByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Counterpart promoted the pair after our increment.
		return nil, errConcurrentUpdate
	}
	return &MateAdvanceResult{Status: statusFromRequest(updated, myID, now)}, nil
}

// promotePair converts a completed request into a mate link. The repository
// elects exactly one promoter; only the winner emits the notification.
func (s *MateService) promotePair(ctx context.Context, req *models.MateRequest, myID, otherID uint) (*MateAdvanceResult, error) {
	promoted, err := s.mateRepo.Promote(ctx, req)
	if err != nil {
		return nil, err
	}
	if promoted {
		middleware.MateAdvances.WithLabelValues("promoted").Inc()
		s.emitter.Emit(ctx, otherID, myID, models.NotificationTypeMatePromoted, "You have a new mate!")
	}
	mate, err := s.mateRepo.GetMateBetween(ctx, myID, otherID)
	if err != nil {
		return nil, err
	}
	if mate == nil {
		return nil, errConcurrentUpdate
	}
	return &MateAdvanceResult{Status: mateStatus(mate)}, nil
}

func (s *MateService) createRequest(ctx context.Context, myID, otherID uint, now time.Time) (*MateAdvanceResult, error) {
	low, high := models.NormalizePair(myID, otherID)
	req := &models.MateRequest{
		UserLowID:   low,
		UserHighID:  high,
		RequesterID: myID,
	}
	// Creation counts as the creator's first confirming action for cooldown
	// purposes, so stamp the creator's side.
	if myID == low {
		req.LastClickLow = &now
	} else {
		req.LastClickHigh = &now
	}

	created, err := s.mateRepo.CreateRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if !created {
		// A concurrent call created the row first; re-resolve and advance it.
		return nil, errConcurrentUpdate
	}

	middleware.MateAdvances.WithLabelValues("created").Inc()
	s.emitter.Emit(ctx, otherID, myID, models.NotificationTypeMateRequest,
		fmt.Sprintf("User %d wants to be mates with you", myID))
	return &MateAdvanceResult{
		Created: true,
		Status:  statusFromRequest(req, myID, now),
	}, nil
}

// ListMates returns the users the caller is mates with.
func (s *MateService) ListMates(ctx context.Context, userID uint) ([]models.User, error) {
	return s.mateRepo.ListMates(ctx, userID)
}

// ListRequests returns the caller's in-flight requests.
func (s *MateService) ListRequests(ctx context.Context, userID uint) ([]models.MateRequest, error) {
	return s.mateRepo.ListRequestsFor(ctx, userID)
}

func mateStatus(mate *models.Mate) *models.MateStatus {
	since := mate.Since
	return &models.MateStatus{
		Status:        models.MateStatusMates,
		MyProgress:    models.MateThreshold,
		OtherProgress: models.MateThreshold,
		Threshold:     models.MateThreshold,
		Since:         &since,
	}
}

func cooldownRemaining(req *models.MateRequest, userID uint, now time.Time) time.Duration {
	lastClick := req.LastClickOf(userID)
	if lastClick == nil {
		return 0
	}
	remaining := models.MateCooldown - now.Sub(*lastClick)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// statusFromRequest derives the caller-relative status of an in-flight
// request: cooldown wins, then the fresh-request pending states, then
// in_progress.
func statusFromRequest(req *models.MateRequest, userID uint, now time.Time) *models.MateStatus {
	status := &models.MateStatus{
		MyProgress:    req.ProgressOf(userID),
		OtherProgress: req.ProgressOf(req.OtherID(userID)),
		Threshold:     models.MateThreshold,
	}

	if remaining := cooldownRemaining(req, userID, now); remaining > 0 {
		secs := int64(remaining / time.Second)
		if remaining%time.Second != 0 {
			secs++
		}
		status.Status = models.MateStatusCooldown
		status.CooldownRemainingSeconds = &secs
		return status
	}

	if req.ProgressLow == 0 && req.ProgressHigh == 0 {
		if req.RequesterID == userID {
			status.Status = models.MateStatusPendingSent
		} else {
			status.Status = models.MateStatusPendingReceived
		}
		return status
	}

	status.Status = models.MateStatusInProgress
	return status
}
