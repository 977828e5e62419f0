// Message HTTP handlers.
//
// This file exposes REST endpoints for the debate message ledger:
//   - POST /debates/{id}/messages   (append a participant message)
//   - GET  /debates/{id}/messages   (list, optionally incremental via ?after=)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, debate, key), the handler returns that recorded
// message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"github.com/tbourn/go-debate-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a debate message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// a maximum rune count, which can be configured in MessageService.
type PostMessageRequest struct {
	// Content is the message body. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"Consent can be tacit as well as explicit."`
}

// PostMessageResponse is the JSON envelope for a newly appended message.
type PostMessageResponse struct {
	// Message is the ledger entry created by the request.
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a debate's messages in ledger order.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete MessageService for a
// configured length limit, including 0 ("cap disabled"), so the handler's
// edge check always agrees with the service. The conservative fallback
// applies only to unknown implementations.
func discoverMaxContentRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, okSvc := msgSvc.(*services.MessageService); okSvc {
		return ms.MaxContentRunes
	}
	return fallback
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Append a message to a debate
// @Description Appends a participant message to the debate's ledger. The first message
// @Description of a fully seated setup debate activates it. Supports idempotency via the
// @Description Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "User ID of a participant"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Debate ID (UUID)"          format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.PostMessageResponse  "Appended message"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse        "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse        "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse        "Debate not found"
// @Failure     409  {object}  handlers.ErrorResponse        "Debate paused or finished"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /debates/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := idempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.msgSvc.(*services.MessageService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, uid, debateID, idemKey); err == nil && rec != nil {
				if prev, err2 := repo.GetMessage(svc.DB, rec.MessageID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, PostMessageResponse{Message: prev})
					return
				}
			}
		}
	}

	m, err := h.msgSvc.Append(ctx, uid, debateID, content)
	if err != nil {
		switch err {
		case services.ErrDebateNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debate not found")
		case services.ErrNotParticipant:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this debate")
		case services.ErrDebateFinished, services.ErrDebatePaused:
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.msgSvc.(*services.MessageService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_ = repo.CreateIdempotency(ctx, svc.DB, uid, debateID, idemKey, m.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a debate
// @Description Returns the debate's messages oldest-first. With ?after=<RFC3339 timestamp>,
// @Description only messages created strictly later are returned, which lets pollers
// @Description resume from the last message they saw.
// @Tags        Messages
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "User ID of a participant"    example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path    string  true  "Debate ID (UUID)"            format(uuid)
// @Param       after          query   string  false "RFC3339 lower bound (exclusive)"  example(2026-01-02T15:04:05Z)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var after *time.Time
	if raw := strings.TrimSpace(c.Query("after")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "after must be an RFC3339 timestamp")
			return
		}
		t = t.UTC()
		after = &t
	}

	// The service enforces membership; only participants get an ETag.
	items, err := h.msgSvc.List(ctx, uid, debateID, after)
	if err != nil {
		failDebateError(c, err)
		return
	}

	// ETag (best effort, full listings only).
	if after == nil {
		var db *gorm.DB
		if svc, okSvc := h.msgSvc.(*services.MessageService); okSvc {
			db = svc.DB
		}
		if db != nil {
			count, maxTS, statsErr := repo.MessagesStats(ctx, db, debateID)
			if statsErr == nil {
				etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, debateID, count, maxTS.Unix())
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	ok(c, http.StatusOK, ListMessagesResponse{Messages: items})
}

// idempotencyKey extracts an idempotency key if an upstream middleware has
// already validated/stashed it. The fallback behavior reads the
// "Idempotency-Key" header directly when no dedicated middleware exists.
func idempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}
