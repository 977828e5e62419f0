package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// DebatesStats returns the row count and most recent update time across a
// user's debates. Handlers fold the pair into a weak ETag for list
// endpoints, so the values only need to change whenever the list would.
//
// When the user has no debates, the returned time is the zero value.
func DebatesStats(ctx context.Context, db *gorm.DB, userID string) (int64, time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.Debate{}).
		Where("creator_id = ? OR opponent_id = ?", userID, userID)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, time.Time{}, err
	}
	return count, row.UpdatedAt.UTC(), nil
}

// MessagesStats returns the count and latest creation time of a debate's
// messages, for conditional GET support on the ledger endpoint.
//
// When the debate has no messages, the returned time is the zero value.
func MessagesStats(ctx context.Context, db *gorm.DB, debateID string) (int64, time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("debate_id = ?", debateID)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, time.Time{}, err
	}
	return count, row.CreatedAt.UTC(), nil
}
