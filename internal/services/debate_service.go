// Package services – DebateService
//
// This file implements the DebateService, which manages the lifecycle of
// debates: creation with a generated invite code, paginated listing,
// opponent joining, and status transitions. Lifecycle changes go through
// conditional single-row updates in the repository so that concurrent
// requests never corrupt the state machine.
//
// Service-level errors (e.g., ErrDebateNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// inviteCodeAttempts bounds retries on an invite-code collision. Codes are
// 4 random bytes so collisions are rare; hitting the bound means something
// is wrong with the entropy source, not bad luck.
const inviteCodeAttempts = 5

// DebateRepo defines the repository contract required by DebateService.
type DebateRepo interface {
	// CreateDebate inserts a new debate row in the setup state.
	CreateDebate(ctx context.Context, db *gorm.DB, creatorID, title, topic, description, inviteCode string) (*domain.Debate, error)

	// GetDebate fetches a debate by ID.
	GetDebate(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error)

	// GetDebateDetail fetches a debate with participants and definitions joined.
	GetDebateDetail(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error)

	// FindDebateByInviteCode resolves an invite code to its debate.
	FindDebateByInviteCode(ctx context.Context, db *gorm.DB, code string) (*domain.Debate, error)

	// CountDebates returns how many debates the user participates in.
	CountDebates(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListDebatesPage returns a page of the user's debates, newest first.
	ListDebatesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debate, error)

	// BindOpponent seats userID as the opponent if the seat is still empty.
	BindOpponent(ctx context.Context, db *gorm.DB, debateID, userID string) (bool, error)

	// UpdateDebateStatus applies from->to if the debate is still in from.
	UpdateDebateStatus(ctx context.Context, db *gorm.DB, debateID, from, to string) (bool, error)
}

// DebateService provides debate-level operations such as creating, listing,
// joining, and transitioning debate status.
type DebateService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the debate repository used by this service.
	Repo DebateRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewDebateService constructs a DebateService with sane defaults.
func NewDebateService(db *gorm.DB, r DebateRepo) *DebateService {
	return &DebateService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 200,
	}
}

// Create inserts a new debate owned by userID with the provided title,
// topic, and optional description, minting a fresh invite code. The creator
// starts as the only participant and the debate starts in the setup state.
func (s *DebateService) Create(ctx context.Context, userID, title, topic, description string) (*domain.Debate, error) {
	tr := otel.Tracer("services/DebateService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	title = normalizeText(title)
	topic = normalizeText(topic)
	description = strings.TrimSpace(description)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if topic == "" {
		return nil, ErrTopicRequired
	}
	title = s.clip(title)

	var lastErr error
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		d, err := s.Repo.CreateDebate(ctx, s.DB, userID, title, topic, description, code)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate invite code: %w", lastErr)
}

// Get returns the full debate view (participants and definitions) for a
// participant. Non-participants get ErrNotParticipant even when the debate
// exists, so the endpoint does not leak membership.
func (s *DebateService) Get(ctx context.Context, userID, debateID string) (*domain.Debate, error) {
	tr := otel.Tracer("services/DebateService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	d, err := s.Repo.GetDebateDetail(ctx, s.DB, debateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return d, nil
}

// ListPage returns a page of the user's debates (paginated). It applies
// defaults for invalid page/pageSize and returns total count.
func (s *DebateService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Debate, int64, error) {
	tr := otel.Tracer("services/DebateService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountDebates(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Debate{}, 0, nil
	}

	items, err := s.Repo.ListDebatesPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Join seats userID as the opponent of the debate identified by inviteCode.
// Codes are matched case-insensitively. Joining a debate the user already
// occupies the opponent seat of is a no-op success; joining one's own
// debate or a full debate fails.
func (s *DebateService) Join(ctx context.Context, userID, inviteCode string) (*domain.Debate, error) {
	tr := otel.Tracer("services/DebateService")
	ctx, span := tr.Start(ctx, "Join",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, ErrInviteNotFound
	}

	d, err := s.Repo.FindDebateByInviteCode(ctx, s.DB, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	if d.CreatorID == userID {
		return nil, ErrSelfJoin
	}
	if d.OpponentID != nil {
		if *d.OpponentID == userID {
			return s.Repo.GetDebateDetail(ctx, s.DB, d.ID)
		}
		return nil, ErrDebateFull
	}

	bound, err := s.Repo.BindOpponent(ctx, s.DB, d.ID, userID)
	if err != nil {
		return nil, err
	}
	if !bound {
		// Lost a race for the seat; re-read to distinguish "we already hold
		// it" from "someone else got there first".
		d, err = s.Repo.GetDebate(ctx, s.DB, d.ID)
		if err != nil {
			return nil, err
		}
		if d.OpponentID == nil || *d.OpponentID != userID {
			return nil, ErrDebateFull
		}
	}
	return s.Repo.GetDebateDetail(ctx, s.DB, d.ID)
}

// ChangeStatus applies an explicit lifecycle transition requested by a
// participant. Illegal pairs (per the transition table) come back as
// *InvalidTransitionError carrying the observed current status.
func (s *DebateService) ChangeStatus(ctx context.Context, userID, debateID, to string) (*domain.Debate, error) {
	tr := otel.Tracer("services/DebateService")
	ctx, span := tr.Start(ctx, "ChangeStatus",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("debate.status.to", to),
		),
	)
	defer span.End()

	d, err := s.Repo.GetDebate(ctx, s.DB, debateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if !domain.ValidStatus(to) || !domain.CanTransition(d.Status, to) {
		return nil, &InvalidTransitionError{From: d.Status, To: to}
	}

	ok, err := s.Repo.UpdateDebateStatus(ctx, s.DB, debateID, d.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The status moved underneath us; report against what is there now.
		cur, rerr := s.Repo.GetDebate(ctx, s.DB, debateID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, &InvalidTransitionError{From: cur.Status, To: to}
	}
	return s.Repo.GetDebateDetail(ctx, s.DB, debateID)
}

// clip truncates a debate title to the configured maximum rune length.
func (s *DebateService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// newInviteCode mints an 8-character uppercase hex code from 4 random bytes.
func newInviteCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// normalizeText trims whitespace and collapses multiple spaces to one.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
