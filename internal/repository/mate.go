package repository

import (
	"context"
	"errors"
	"time"

	"matehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MateRepository defines data operations for mate requests and mate links.
type MateRepository interface {
	GetMateBetween(ctx context.Context, a, b uint) (*models.Mate, error)
	GetRequestBetween(ctx context.Context, a, b uint) (*models.MateRequest, error)
	GetRequestByID(ctx context.Context, id uint) (*models.MateRequest, error)
	CreateRequest(ctx context.Context, req *models.MateRequest) (bool, error)
	AdvanceSide(ctx context.Context, id uint, side models.PairSide, prevProgress int, now time.Time) (bool, error)
	Promote(ctx context.Context, req *models.MateRequest) (bool, error)
	ListMates(ctx context.Context, userID uint) ([]models.User, error)
	ListRequestsFor(ctx context.Context, userID uint) ([]models.MateRequest, error)
}

type mateRepository struct {
	db *gorm.DB
}

// NewMateRepository creates a new mate repository
func NewMateRepository(db *gorm.DB) MateRepository {
	return &mateRepository{db: db}
}

// GetMateBetween returns the mate link for a pair, or nil if the two users
// are not mates.
func (r *mateRepository) GetMateBetween(ctx context.Context, a, b uint) (*models.Mate, error) {
	low, high := models.NormalizePair(a, b)
	var mate models.Mate
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&mate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &mate, nil
}

// GetRequestBetween returns the in-flight mate request for a pair, or nil if
// none exists.
func (r *mateRepository) GetRequestBetween(ctx context.Context, a, b uint) (*models.MateRequest, error) {
	low, high := models.NormalizePair(a, b)
	var req models.MateRequest
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *mateRepository) GetRequestByID(ctx context.Context, id uint) (*models.MateRequest, error) {
	var req models.MateRequest
	err := r.db.WithContext(ctx).First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// CreateRequest inserts a mate request for the pair. The unique index on
// (user_low_id, user_high_id) absorbs concurrent duplicates: the second
// insert is a no-op and created is false.
func (r *mateRepository) CreateRequest(ctx context.Context, req *models.MateRequest) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
			DoNothing: true,
		}).
		Create(req)
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// AdvanceSide increments one side's progress counter and stamps its
// last-click time. The update is keyed on the progress value the caller
// read, so a concurrent increment on the same side makes it a no-op and
// the caller must re-read and retry.
func (r *mateRepository) AdvanceSide(ctx context.Context, id uint, side models.PairSide, prevProgress int, now time.Time) (bool, error) {
	progressCol := "progress_low"
	clickCol := "last_click_low"
	if side == models.SideHigh {
		progressCol = "progress_high"
		clickCol = "last_click_high"
	}

	result := r.db.WithContext(ctx).
		Model(&models.MateRequest{}).
		Where("id = ? AND "+progressCol+" = ?", id, prevProgress).
		Updates(map[string]interface{}{
			progressCol: prevProgress + 1,
			clickCol:    now,
		})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Promote converts a completed request into a mate link. Deleting the
// request row and checking RowsAffected inside the transaction guarantees
// that exactly one concurrent promoter performs the conversion.
func (r *mateRepository) Promote(ctx context.Context, req *models.MateRequest) (bool, error) {
	promoted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.MateRequest{}, req.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Someone else already promoted this pair.
			return nil
		}

		mate := models.Mate{
			UserLowID:  req.UserLowID,
			UserHighID: req.UserHighID,
			Since:      req.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
			DoNothing: true,
		}).Create(&mate).Error; err != nil {
			return err
		}
		promoted = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return promoted, nil
}

// ListMates returns the users the given user is mates with.
func (r *mateRepository) ListMates(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN mates ON (mates.user_low_id = ? AND mates.user_high_id = users.id) OR (mates.user_high_id = ? AND mates.user_low_id = users.id)", userID, userID).
		Order("users.username ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ListRequestsFor returns all in-flight requests involving the user.
func (r *mateRepository) ListRequestsFor(ctx context.Context, userID uint) ([]models.MateRequest, error) {
	var reqs []models.MateRequest
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}
