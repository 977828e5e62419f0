// Package services – DefinitionService
//
// This file implements DefinitionService, which manages a debate's
// definition register: participants propose working definitions of the
// terms under debate and the counterparty accepts or disputes them.
// Review is a one-shot move out of the proposed state, protected by a
// conditional update so concurrent reviewers cannot both win.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
)

// termFolder lowercases terms for duplicate detection across scripts.
var termFolder = cases.Fold()

// DefinitionService provides propose/list/review operations over the
// definition register of a debate.
type DefinitionService struct {
	DB *gorm.DB

	// TermMaxRunes caps the term length; 0 disables.
	TermMaxRunes int
}

// Propose records a new proposed definition for a term. Duplicate terms
// within the same debate are rejected case-insensitively, and finished
// debates no longer accept proposals (paused ones still do).
func (s *DefinitionService) Propose(ctx context.Context, userID, debateID, term, definition string) (*domain.Definition, error) {
	tr := otel.Tracer("services/DefinitionService")
	ctx, span := tr.Start(ctx, "Propose",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	term = normalizeText(term)
	definition = strings.TrimSpace(definition)
	if term == "" || definition == "" {
		return nil, ErrTermRequired
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
	if d.Status == domain.StatusFinished {
		return nil, ErrDebateFinished
	}

	existing, err := repo.ListDefinitions(ctx, s.DB, debateID)
	if err != nil {
		return nil, err
	}
	folded := termFolder.String(term)
	for _, def := range existing {
		if termFolder.String(def.Term) == folded {
			return nil, ErrDuplicateTerm
		}
	}

	return repo.CreateDefinition(s.DB.WithContext(ctx), debateID, userID, term, definition)
}

// List returns a debate's definitions oldest-first for a participant.
func (s *DefinitionService) List(ctx context.Context, userID, debateID string) ([]domain.Definition, error) {
	tr := otel.Tracer("services/DefinitionService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("user.id", userID),
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

	return repo.ListDefinitions(ctx, s.DB, debateID)
}

// Review moves a proposed definition to accepted or disputed. Only a
// participant other than the proposer may review, and a definition can be
// reviewed exactly once: losing a concurrent review surfaces as
// *InvalidTransitionError against the definition's current status.
func (s *DefinitionService) Review(ctx context.Context, userID, definitionID, to string) (*domain.Definition, error) {
	tr := otel.Tracer("services/DefinitionService")
	ctx, span := tr.Start(ctx, "Review",
		trace.WithAttributes(
			attribute.String("definition.id", definitionID),
			attribute.String("definition.status.to", to),
		),
	)
	defer span.End()

	if to != domain.DefinitionAccepted && to != domain.DefinitionDisputed {
		return nil, ErrInvalidDefinitionStatus
	}

	def, err := repo.GetDefinition(s.DB.WithContext(ctx), definitionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	if !def.Debate.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if def.ProposedByID == userID {
		return nil, ErrSelfReview
	}
	if def.Status != domain.DefinitionProposed {
		return nil, &InvalidTransitionError{From: def.Status, To: to}
	}

	ok, err := repo.UpdateDefinitionStatus(ctx, s.DB, definitionID, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, rerr := repo.GetDefinition(s.DB.WithContext(ctx), definitionID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, &InvalidTransitionError{From: cur.Status, To: to}
	}

	def.Status = to
	return def, nil
}
