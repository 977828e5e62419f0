package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateDefinition inserts a proposed definition for a debate term.
func CreateDefinition(db *gorm.DB, debateID, proposedByID, term, definition string) (*domain.Definition, error) {
	now := time.Now().UTC()
	d := &domain.Definition{
		ID:           uuid.NewString(),
		DebateID:     debateID,
		Term:         term,
		Definition:   definition,
		Status:       domain.DefinitionProposed,
		ProposedByID: proposedByID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return d, db.Create(d).Error
}

// GetDefinition fetches a definition with its parent debate joined, so
// callers can authorize against the debate's participants in one read.
func GetDefinition(db *gorm.DB, id string) (*domain.Definition, error) {
	var d domain.Definition
	if err := db.Preload("Debate").Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDefinitions returns all definitions of a debate oldest-first.
func ListDefinitions(ctx context.Context, db *gorm.DB, debateID string) ([]domain.Definition, error) {
	var out []domain.Definition
	err := db.WithContext(ctx).
		Preload("ProposedBy").
		Where("debate_id = ?", debateID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateDefinitionStatus moves a definition out of the proposed state with
// a conditional UPDATE. The WHERE clause guards against double review: of
// two concurrent reviewers only the first sees an affected row, the loser
// gets false back.
func UpdateDefinitionStatus(ctx context.Context, db *gorm.DB, definitionID, to string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Definition{}).
		Where("id = ? AND status = ?", definitionID, domain.DefinitionProposed).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
