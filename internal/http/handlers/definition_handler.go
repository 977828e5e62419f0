// Definition HTTP handlers.
//
// This file exposes REST endpoints for a debate's definition register:
//   - POST  /debates/{id}/definitions     (propose)
//   - GET   /debates/{id}/definitions     (list)
//   - PATCH /definitions/{id}/status      (accept or dispute)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/services"
)

//
// DTOs
//

// ProposeDefinitionRequest is the JSON payload for proposing a definition.
type ProposeDefinitionRequest struct {
	// Term is the word or phrase being defined.
	Term string `json:"term" binding:"required,min=1" example:"consent"`
	// Definition is the proposed working meaning of the term.
	Definition string `json:"definition" binding:"required,min=1" example:"Voluntary agreement given without coercion."`
}

// ReviewDefinitionRequest is the JSON payload for reviewing a definition.
type ReviewDefinitionRequest struct {
	// Status is the review outcome: accepted or disputed.
	Status string `json:"status" binding:"required,min=1" example:"accepted"`
}

// ListDefinitionsResponse contains a debate's definitions oldest-first.
type ListDefinitionsResponse struct {
	Definitions []domain.Definition `json:"definitions"`
}

//
// Handlers
//

// ProposeDefinition godoc
// @ID          proposeDefinition
// @Summary     Propose a definition
// @Description Records a proposed definition of a term for the debate. Terms are unique
// @Description per debate (case-insensitive). Finished debates reject proposals.
// @Tags        Definitions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID of a participant"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"          format(uuid)
// @Param       body       body    handlers.ProposeDefinitionRequest  true  "Definition payload"
//
// @Success     201  {object} domain.Definition
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Failure     409  {object} handlers.ErrorResponse "Duplicate term or finished debate"
// @Router      /debates/{id}/definitions [post]
func (h *Handlers) ProposeDefinition(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var req ProposeDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "term and definition required")
		return
	}

	d, err := h.defSvc.Propose(c.Request.Context(), uid, debateID, req.Term, req.Definition)
	if err != nil {
		switch err {
		case services.ErrTermRequired:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case services.ErrDuplicateTerm, services.ErrDebateFinished:
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			failDebateError(c, err)
		}
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDefinitions godoc
// @ID          listDefinitions
// @Summary     List a debate's definitions
// @Description Returns the definition register oldest-first. Participants only.
// @Tags        Definitions
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID of a participant"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"          format(uuid)
//
// @Success     200  {object} handlers.ListDefinitionsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id}/definitions [get]
func (h *Handlers) ListDefinitions(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	items, err := h.defSvc.List(c.Request.Context(), uid, debateID)
	if err != nil {
		failDebateError(c, err)
		return
	}
	ok(c, http.StatusOK, ListDefinitionsResponse{Definitions: items})
}

// ReviewDefinition godoc
// @ID          reviewDefinition
// @Summary     Accept or dispute a proposed definition
// @Description Moves a proposed definition to accepted or disputed. Only the
// @Description counterparty (not the proposer) may review, and exactly once.
// @Tags        Definitions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID of the reviewing participant"  example(user456)
// @Param       id         path    string  true  "Definition ID (UUID)"                  format(uuid)
// @Param       body       body    handlers.ReviewDefinitionRequest  true  "Review outcome"
//
// @Success     200  {object} domain.Definition
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant or self-review"
// @Failure     404  {object} handlers.ErrorResponse "Definition not found"
// @Failure     409  {object} handlers.ErrorResponse "Already reviewed"
// @Router      /definitions/{id}/status [patch]
func (h *Handlers) ReviewDefinition(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	definitionID := c.Param("id")
	if _, err := uuid.Parse(definitionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "definition id must be a UUID")
		return
	}

	var req ReviewDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}

	d, err := h.defSvc.Review(c.Request.Context(), uid, definitionID, strings.TrimSpace(req.Status))
	if err != nil {
		var ite *services.InvalidTransitionError
		switch {
		case errors.As(err, &ite):
			fail(c, http.StatusConflict, ErrCodeInvalidTransition, ite.Error())
		case err == services.ErrInvalidDefinitionStatus:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case err == services.ErrDefinitionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "definition not found")
		case err == services.ErrSelfReview:
			fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
		case err == services.ErrNotParticipant:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this debate")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, d)
}
