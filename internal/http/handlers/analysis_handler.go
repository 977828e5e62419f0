// Moderation HTTP handlers.
//
// This file exposes the on-demand analysis endpoint:
//   - POST /debates/{id}/messages/{messageID}/analysis
//
// The first successful analysis of a message is persisted and replayed on
// subsequent requests. When the model is unreachable the endpoint still
// returns 200 with a passing verdict whose `persisted` field is false.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/services"
)

// AnalysisResponse is the JSON envelope for a moderation verdict.
type AnalysisResponse struct {
	// Analysis is the verdict for the message.
	Analysis *domain.Analysis `json:"analysis"`
	// Persisted is false when the verdict is a degraded placeholder that was
	// not stored; a retry may produce a real analysis.
	Persisted bool `json:"persisted"`
}

// AnalyzeMessage godoc
// @ID          analyzeMessage
// @Summary     Analyze a debate message
// @Description Produces (or replays) the epistemic moderation verdict for a message.
// @Description Analysis is advisory: provider outages yield a passing, unstored verdict
// @Description rather than an error.
// @Tags        Moderation
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID of a participant"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"          format(uuid)
// @Param       messageID  path    string  true  "Message ID (UUID)"         format(uuid)
//
// @Success     200  {object} handlers.AnalysisResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate or message not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /debates/{id}/messages/{messageID}/analysis [post]
func (h *Handlers) AnalyzeMessage(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	messageID := c.Param("messageID")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	if _, err := uuid.Parse(messageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	a, err := h.modSvc.Analyze(c.Request.Context(), uid, debateID, messageID)
	if err != nil {
		switch err {
		case services.ErrMessageNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case services.ErrDebateNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "debate not found")
		case services.ErrNotParticipant:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this debate")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, AnalysisResponse{Analysis: a, Persisted: a.Persisted()})
}
