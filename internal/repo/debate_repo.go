// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Debate model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a debate is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique-index violations (invite codes) are mapped to ErrDuplicate.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error
//     is propagated.
//
// The one-time opponent binding and every status change are conditional
// single-row updates: the WHERE clause restates the expected prior state so
// concurrent writers cannot clobber each other. Callers inspect the reported
// row count and reload to diagnose a lost race.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation (invite code,
// analysis per message, idempotency key).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// CreateDebate inserts a new Debate row in setup status with no opponent.
// The invite code must already be normalized (uppercase hex); a collision on
// the unique index is returned as ErrDuplicate so the caller can regenerate.
func CreateDebate(ctx context.Context, db *gorm.DB, creatorID, title, topic, description, inviteCode string) (*domain.Debate, error) {
	d := &domain.Debate{
		ID:          uuid.NewString(),
		Title:       title,
		Topic:       topic,
		Description: description,
		Status:      domain.StatusSetup,
		InviteCode:  inviteCode,
		CreatorID:   creatorID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return d, nil
}

// GetDebate fetches a debate by ID, or ErrNotFound.
func GetDebate(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	var d domain.Debate
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDebateDetail fetches a debate with participants, glossary, and the
// glossary proposers preloaded, ordered by definition creation time.
func GetDebateDetail(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	var d domain.Debate
	err := db.WithContext(ctx).
		Preload("Creator").
		Preload("Opponent").
		Preload("Definitions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Preload("Definitions.ProposedBy").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDebateByInviteCode looks a debate up by its normalized invite code.
func FindDebateByInviteCode(ctx context.Context, db *gorm.DB, code string) (*domain.Debate, error) {
	var d domain.Debate
	if err := db.WithContext(ctx).Where("invite_code = ?", code).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDebates returns the number of debates the user participates in,
// as creator or opponent.
func CountDebates(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("creator_id = ? OR opponent_id = ?", userID, userID).
		Count(&total).Error
	return total, err
}

// ListDebatesPage returns a page of the user's debates (creator or opponent),
// most recently updated first, with both participants preloaded.
func ListDebatesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debate, error) {
	var out []domain.Debate
	err := db.WithContext(ctx).
		Preload("Creator").
		Preload("Opponent").
		Where("creator_id = ? OR opponent_id = ?", userID, userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// BindOpponent sets opponent_id to userID if and only if no opponent is bound
// yet and userID is not the creator. It reports whether the row was written;
// false means the guard failed (already bound, missing, or self-join) and the
// caller should reload to tell those cases apart.
func BindOpponent(ctx context.Context, db *gorm.DB, debateID, userID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ? AND opponent_id IS NULL AND creator_id <> ?", debateID, userID).
		Update("opponent_id", userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateDebateStatus moves a debate from one status to another with a
// compare-and-set write (WHERE restates the expected current status). It
// reports whether the transition was applied; false means the debate was
// missing or no longer in the expected status.
func UpdateDebateStatus(ctx context.Context, db *gorm.DB, debateID, from, to string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ? AND status = ?", debateID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ActivateDebate applies the implicit setup→active transition. The guard
// requires setup status and a bound opponent, so the transition fires at most
// once no matter how many appends race. A false result is not an error: the
// debate was simply not eligible (already active, or no opponent yet).
func ActivateDebate(ctx context.Context, db *gorm.DB, debateID string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ? AND status = ? AND opponent_id IS NOT NULL", debateID, domain.StatusSetup).
		Update("status", domain.StatusActive)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TouchDebate bumps updated_at so list ordering reflects recent activity.
func TouchDebate(ctx context.Context, db *gorm.DB, debateID string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ?", debateID).
		Update("updated_at", at).Error
}
