// Debate HTTP handlers.
//
// This file exposes REST endpoints for debate resources:
//   - POST   /debates              (create)
//   - GET    /debates              (list, paginated, ETag support)
//   - GET    /debates/{id}         (detail with participants and definitions)
//   - PATCH  /debates/{id}/status  (lifecycle transition)
//   - POST   /debates/join         (join by invite code)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"github.com/tbourn/go-debate-backend/internal/services"
	"github.com/tbourn/go-debate-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// DebateService defines debate lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DebateService interface {
	// Create starts a new debate for userID with a title, topic, and
	// optional description.
	Create(ctx context.Context, userID, title, topic, description string) (*domain.Debate, error)
	// Get returns the detailed debate view for a participant.
	Get(ctx context.Context, userID, debateID string) (*domain.Debate, error)
	// ListPage returns a page of the user's debates and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Debate, int64, error)
	// Join seats userID as the opponent via an invite code.
	Join(ctx context.Context, userID, inviteCode string) (*domain.Debate, error)
	// ChangeStatus applies a lifecycle transition requested by a participant.
	ChangeStatus(ctx context.Context, userID, debateID, to string) (*domain.Debate, error)
}

// MessageService defines ledger operations consumed by HTTP handlers.
type MessageService interface {
	// Append stores one participant message, activating a ready debate.
	Append(ctx context.Context, userID, debateID, content string) (*domain.Message, error)
	// List returns messages oldest-first, optionally only those after a bound.
	List(ctx context.Context, userID, debateID string, after *time.Time) ([]domain.Message, error)
}

// DefinitionService defines definition-register operations consumed by handlers.
type DefinitionService interface {
	// Propose records a new proposed definition for a term.
	Propose(ctx context.Context, userID, debateID, term, definition string) (*domain.Definition, error)
	// List returns a debate's definitions oldest-first.
	List(ctx context.Context, userID, debateID string) ([]domain.Definition, error)
	// Review moves a proposed definition to accepted or disputed.
	Review(ctx context.Context, userID, definitionID, to string) (*domain.Definition, error)
}

// ModerationService defines on-demand message analysis.
type ModerationService interface {
	// Analyze returns the (possibly cached) moderation verdict for a message.
	Analyze(ctx context.Context, userID, debateID, messageID string) (*domain.Analysis, error)
}

// AccountService defines account registration.
type AccountService interface {
	// Register creates a new user account.
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for debates, messages, definitions,
// moderation, and accounts. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	debateSvc DebateService
	msgSvc    MessageService
	defSvc    DefinitionService
	modSvc    ModerationService
	acctSvc   AccountService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(debateSvc DebateService, msgSvc MessageService, defSvc DefinitionService, modSvc ModerationService, acctSvc AccountService) *Handlers {
	return &Handlers{
		debateSvc: debateSvc,
		msgSvc:    msgSvc,
		defSvc:    defSvc,
		modSvc:    modSvc,
		acctSvc:   acctSvc,
	}
}

// currentUser extracts the authenticated user id from Gin context (set by
// upstream middleware), falling back to the "X-User-ID" header. The second
// return is false when no identity is present; callers must reject such
// requests with 401.
func currentUser(c *gin.Context) (string, bool) {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h, true
		}
	}
	return "", false
}

// requireUser resolves the current user or writes a 401 and returns false.
func requireUser(c *gin.Context) (string, bool) {
	uid, okUser := currentUser(c)
	if !okUser {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// CreateDebateRequest is the JSON payload for creating a debate.
type CreateDebateRequest struct {
	// Title names the debate (1–200 chars).
	Title string `json:"title" binding:"required,min=1" example:"Taxation and consent"`
	// Topic states the proposition under debate.
	Topic string `json:"topic" binding:"required,min=1" example:"Is taxation compatible with individual consent?"`
	// Description optionally elaborates on the format or stakes.
	Description string `json:"description,omitempty" example:"Best of three rounds, written form"`
}

// JoinDebateRequest is the JSON payload for joining a debate by invite code.
type JoinDebateRequest struct {
	// InviteCode is the 8-character code shared by the creator.
	InviteCode string `json:"invite_code" binding:"required,min=1" example:"A1B2C3D4"`
}

// UpdateDebateStatusRequest is the JSON payload for a lifecycle transition.
type UpdateDebateStatusRequest struct {
	// Status is the target state: active, paused, or finished.
	Status string `json:"status" binding:"required,min=1" example:"active"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDebatesResponse wraps a page of debates and pagination information.
type ListDebatesResponse struct {
	Debates    []domain.Debate `json:"debates"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateDebate godoc
// @ID          createDebate
// @Summary     Create a new debate
// @Description Creates a debate in the setup state and returns it with a fresh invite code.
// @Tags        Debates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Param       body       body    handlers.CreateDebateRequest  true  "Create debate payload"
//
// @Success     201  {object}  domain.Debate
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debates [post]
func (h *Handlers) CreateDebate(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}

	var req CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and topic required")
		return
	}

	d, err := h.debateSvc.Create(c.Request.Context(), uid, req.Title, req.Topic, req.Description)
	if err != nil {
		switch err {
		case services.ErrTitleRequired, services.ErrTopicRequired:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDebates godoc
// @ID          listDebates
// @Summary     List the user's debates (paginated)
// @Description Returns a page of debates the user participates in, newest first.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Debates
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "User ID"                     example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDebatesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /debates [get]
func (h *Handlers) ListDebates(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.debateSvc.(*services.DebateService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.DebatesStats(ctx, db, uid)
		if err == nil {
			etag := fmt.Sprintf(`W/"debates:%s:%d:%d"`, uid, count, maxTS.Unix())
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.debateSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDebatesResponse{
		Debates: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDebate godoc
// @ID          getDebate
// @Summary     Get a debate
// @Description Returns a debate with participants and definitions. Participants only.
// @Tags        Debates
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"        example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)" format(uuid)
//
// @Success     200  {object} domain.Debate
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id} [get]
func (h *Handlers) GetDebate(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	d, err := h.debateSvc.Get(c.Request.Context(), uid, debateID)
	if err != nil {
		failDebateError(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// JoinDebate godoc
// @ID          joinDebate
// @Summary     Join a debate by invite code
// @Description Seats the current user as the opponent of the debate the code resolves to.
// @Description Re-joining a debate you already occupy the opponent seat of succeeds idempotently.
// @Tags        Debates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"  example(user456)
// @Param       body       body    handlers.JoinDebateRequest  true  "Invite code payload"
//
// @Success     200  {object} domain.Debate
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     404  {object} handlers.ErrorResponse "Invite code not found"
// @Failure     409  {object} handlers.ErrorResponse "Debate full or own debate"
// @Router      /debates/join [post]
func (h *Handlers) JoinDebate(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}

	var req JoinDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invite_code required")
		return
	}

	d, err := h.debateSvc.Join(c.Request.Context(), uid, req.InviteCode)
	if err != nil {
		switch err {
		case services.ErrInviteNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "invite code not found")
		case services.ErrSelfJoin, services.ErrDebateFull:
			fail(c, http.StatusConflict, ErrCodeJoinFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDebateStatus godoc
// @ID          updateDebateStatus
// @Summary     Transition a debate's lifecycle status
// @Description Applies an explicit transition (active, paused, finished) per the lifecycle rules.
// @Tags        Debates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"          example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)" format(uuid)
// @Param       body       body    handlers.UpdateDebateStatusRequest  true  "Target status"
//
// @Success     200  {object} domain.Debate
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition"
// @Router      /debates/{id}/status [patch]
func (h *Handlers) UpdateDebateStatus(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var req UpdateDebateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	d, err := h.debateSvc.ChangeStatus(c.Request.Context(), uid, debateID, strings.TrimSpace(req.Status))
	if err != nil {
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			fail(c, http.StatusConflict, ErrCodeInvalidTransition, ite.Error())
			return
		}
		failDebateError(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// failDebateError maps shared debate-access errors to HTTP responses.
func failDebateError(c *gin.Context, err error) {
	switch err {
	case services.ErrDebateNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "debate not found")
	case services.ErrNotParticipant:
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this debate")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
