package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// GetIdempotency looks up a prior request by (user, debate, key). Expired
// records are treated as absent so the key becomes reusable.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, debateID, key string) (*domain.Idempotency, error) {
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND debate_id = ? AND key = ?", userID, debateID, key).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Before(time.Now().UTC()) {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

// CreateIdempotency records a completed request under its key with a TTL.
// A concurrent duplicate insert surfaces as ErrDuplicate; the caller should
// fall back to the stored record.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, debateID, key, messageID string, status int, ttl time.Duration) error {
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		DebateID:  debateID,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
