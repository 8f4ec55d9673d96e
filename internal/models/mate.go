package models

import (
	"fmt"
	"time"
)

// Progression constants for the mates flow. Each participant must confirm
// MateThreshold times, waiting at least MateCooldown between their own
// confirmations, before the pair is promoted to a permanent mate record.
const (
	MateThreshold = 5
	MateCooldown  = 24 * time.Hour
)

// PairSide identifies which side of a canonical (low, high) pair a user is on.
type PairSide string

const (
	SideLow  PairSide = "low"
	SideHigh PairSide = "high"
)

// NormalizePair returns the two user IDs in canonical (low, high) order.
// Pair-keyed tables always store and query this single form, so the
// composite uniqueness constraint covers both argument orders.
func NormalizePair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// DirectKey derives the canonical string key for a user pair, used to
// deduplicate direct conversations.
func DirectKey(a, b uint) string {
	low, high := NormalizePair(a, b)
	return fmt.Sprintf("%d:%d", low, high)
}

// MateRequest is a pending mates progression between two users. At most one
// row exists per unordered pair; the row is deleted when the pair is promoted.
type MateRequest struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserLowID     uint       `gorm:"not null;uniqueIndex:idx_mate_requests_pair" json:"user_low_id"`
	UserHighID    uint       `gorm:"not null;uniqueIndex:idx_mate_requests_pair" json:"user_high_id"`
	RequesterID   uint       `gorm:"not null" json:"requester_id"`
	ProgressLow   int        `gorm:"not null;default:0" json:"progress_low"`
	ProgressHigh  int        `gorm:"not null;default:0" json:"progress_high"`
	LastClickLow  *time.Time `json:"last_click_low,omitempty"`
	LastClickHigh *time.Time `json:"last_click_high,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM
func (MateRequest) TableName() string {
	return "mate_requests"
}

// SideOf returns which side of the pair the given user is on.
func (r *MateRequest) SideOf(userID uint) PairSide {
	if userID == r.UserLowID {
		return SideLow
	}
	return SideHigh
}

// OtherID returns the counterpart's user ID.
func (r *MateRequest) OtherID(userID uint) uint {
	if userID == r.UserLowID {
		return r.UserHighID
	}
	return r.UserLowID
}

// ProgressOf returns the progress counter for the given user's side.
func (r *MateRequest) ProgressOf(userID uint) int {
	if userID == r.UserLowID {
		return r.ProgressLow
	}
	return r.ProgressHigh
}

// LastClickOf returns the last-click timestamp for the given user's side.
func (r *MateRequest) LastClickOf(userID uint) *time.Time {
	if userID == r.UserLowID {
		return r.LastClickLow
	}
	return r.LastClickHigh
}

// Complete reports whether both sides have reached the threshold.
func (r *MateRequest) Complete() bool {
	return r.ProgressLow >= MateThreshold && r.ProgressHigh >= MateThreshold
}

// Mate is a promoted, permanent mates relationship. Never mutated or deleted.
type Mate struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserLowID  uint      `gorm:"not null;uniqueIndex:idx_mates_pair" json:"user_low_id"`
	UserHighID uint      `gorm:"not null;uniqueIndex:idx_mates_pair" json:"user_high_id"`
	Since      time.Time `gorm:"not null" json:"since"`
}

// TableName specifies the table name for GORM
func (Mate) TableName() string {
	return "mates"
}

// MateStatusKind enumerates the caller-relative states of a pair.
type MateStatusKind string

const (
	// MateStatusNone means no request or mate record exists for the pair.
	MateStatusNone MateStatusKind = "none"
	// MateStatusPendingSent means a fresh request the caller created.
	MateStatusPendingSent MateStatusKind = "pending_sent"
	// MateStatusPendingReceived means a fresh request the counterpart created.
	MateStatusPendingReceived MateStatusKind = "pending_received"
	// MateStatusInProgress means both sides are accumulating confirmations.
	MateStatusInProgress MateStatusKind = "in_progress"
	// MateStatusCooldown means the caller must wait before confirming again.
	MateStatusCooldown MateStatusKind = "cooldown"
	// MateStatusMates means the pair has been promoted.
	MateStatusMates MateStatusKind = "mates"
)

// MateStatus is the caller-relative view of a pair's progression state.
type MateStatus struct {
	Status                   MateStatusKind `json:"status"`
	MyProgress               int            `json:"my_progress"`
	OtherProgress            int            `json:"other_progress"`
	Threshold                int            `json:"threshold"`
	CooldownRemainingSeconds *int64         `json:"cooldown_remaining_seconds,omitempty"`
	Since                    *time.Time     `json:"since,omitempty"`
}
