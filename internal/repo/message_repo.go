// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. The ledger is append-only: there is no update or delete here, and
// every read orders by (created_at, id) so concurrent inserts land in a
// stable, timestamp-authoritative order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateMessage appends a message row with a server-assigned UTC timestamp.
func CreateMessage(db *gorm.DB, debateID, senderID, senderType, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		DebateID:   debateID,
		SenderID:   senderID,
		SenderType: senderType,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListMessages returns a debate's messages in ascending (created_at, id)
// order with sender identity and any attached analysis joined. A non-nil
// after bound restricts the result to messages created strictly later,
// which is what incremental polling clients pass.
func ListMessages(ctx context.Context, db *gorm.DB, debateID string, after *time.Time) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Preload("Sender").
		Preload("Analysis").
		Where("debate_id = ?", debateID)
	if after != nil {
		q = q.Where("created_at > ?", *after)
	}
	var out []domain.Message
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(db *gorm.DB, debateID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM messages WHERE debate_id = ?", debateID).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
