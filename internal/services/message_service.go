// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the append-only message ledger of a debate. It validates inputs,
// checks participation, enforces the lifecycle write rules (no posting to
// paused or finished debates), and performs the implicit setup->active
// activation on the first message once both seats are filled.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include debate/user identifiers.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService coordinates message persistence and ledger reads.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message content by rune length; 0 disables.
	MaxContentRunes int
}

// Append validates and stores one message from a participant, activating
// the debate when this is the first message of a fully seated setup debate.
// The write and the activation share a transaction so no observer can see a
// message inside a setup debate.
func (s *MessageService) Append(ctx context.Context, userID, debateID, content string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	d, err := repo.GetDebate(ctx, s.DB, debateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	switch d.Status {
	case domain.StatusFinished:
		return nil, ErrDebateFinished
	case domain.StatusPaused:
		return nil, ErrDebatePaused
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, debateID, userID, domain.SenderUser, content)
		if err != nil {
			return err
		}
		msg = m

		if d.Status == domain.StatusSetup && d.OpponentID != nil {
			// Conditional update: at most one concurrent Append performs the
			// activation, the rest see zero rows affected.
			if _, err := repo.ActivateDebate(ctx, tx, debateID); err != nil {
				return err
			}
		}
		return repo.TouchDebate(ctx, tx, debateID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns a debate's messages oldest-first for a participant. A
// non-nil after bound restricts the result to messages created strictly
// later than the given instant, so pollers can resume from the timestamp
// of the last message they saw without re-receiving it.
func (s *MessageService) List(ctx context.Context, userID, debateID string, after *time.Time) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("user.id", userID),
			attribute.Bool("incremental", after != nil),
		),
	)
	defer span.End()

	d, err := repo.GetDebate(ctx, s.DB, debateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}

	return repo.ListMessages(ctx, s.DB, debateID, after)
}
