package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateAnalysis persists a moderation verdict for a message. The one-row-
// per-message unique index is the arbiter under concurrent analysis
// requests; a losing insert is reported as ErrDuplicate so the caller can
// re-read the winner.
func CreateAnalysis(db *gorm.DB, a *domain.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := db.Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAnalysisByMessage fetches the stored verdict for a message, if any.
func GetAnalysisByMessage(db *gorm.DB, messageID string) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := db.Where("message_id = ?", messageID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
