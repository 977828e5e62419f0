package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
)

func TestProposeDefinition_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.POST("/debates/:id/definitions", h.ProposeDefinition)

	alice := seedHandlerUser(t, db, "alice")
	carol := seedHandlerUser(t, db, "carol")
	d, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "CODE0001")
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}

	if w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", "", `{"term":"x","definition":"y"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/debates/bad/definitions", alice.ID, `{"term":"x","definition":"y"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", alice.ID, `{"term":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing definition -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", carol.ID, `{"term":"x","definition":"y"}`); w.Code != http.StatusForbidden {
		t.Fatalf("stranger -> %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", alice.ID, `{"term":"Consent","definition":"Voluntary agreement."}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("propose -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Definition
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Term != "Consent" || out.Status != domain.DefinitionProposed || out.ProposedByID != alice.ID {
		t.Fatalf("unexpected definition: %#v", out)
	}

	// Case-insensitive duplicate -> 409.
	if w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", alice.ID, `{"term":"consent","definition":"other"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate term -> %d", w.Code)
	}

	// Finished debates reject proposals -> 409.
	if err := db.Model(&domain.Debate{}).Where("id = ?", d.ID).Update("status", domain.StatusFinished).Error; err != nil {
		t.Fatalf("finish: %v", err)
	}
	if w := doJSON(r, http.MethodPost, "/debates/"+d.ID+"/definitions", alice.ID, `{"term":"justice","definition":"fairness"}`); w.Code != http.StatusConflict {
		t.Fatalf("finished -> %d", w.Code)
	}
}

func TestListDefinitions_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.GET("/debates/:id/definitions", h.ListDefinitions)

	alice := seedHandlerUser(t, db, "alice")
	carol := seedHandlerUser(t, db, "carol")
	d, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "CODE0001")
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}
	if _, err := repo.CreateDefinition(db, d.ID, alice.ID, "truth", "correspondence"); err != nil {
		t.Fatalf("seed definition: %v", err)
	}

	if w := doJSON(r, http.MethodGet, "/debates/"+uuid.NewString()+"/definitions", alice.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing debate -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/debates/"+d.ID+"/definitions", carol.ID, ""); w.Code != http.StatusForbidden {
		t.Fatalf("stranger -> %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/debates/"+d.ID+"/definitions", alice.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	var out ListDefinitionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Definitions) != 1 || out.Definitions[0].Term != "truth" {
		t.Fatalf("unexpected register: %+v", out.Definitions)
	}
}

func TestReviewDefinition_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.PATCH("/definitions/:id/status", h.ReviewDefinition)

	alice := seedHandlerUser(t, db, "alice")
	bob := seedHandlerUser(t, db, "bob")
	d, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "CODE0001")
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}
	if ok, err := repo.BindOpponent(context.Background(), db, d.ID, bob.ID); err != nil || !ok {
		t.Fatalf("bind: ok=%v err=%v", ok, err)
	}
	def, err := repo.CreateDefinition(db, d.ID, alice.ID, "truth", "correspondence")
	if err != nil {
		t.Fatalf("seed definition: %v", err)
	}

	if w := doJSON(r, http.MethodPatch, "/definitions/"+def.ID+"/status", bob.ID, `{"status":"maybe"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPatch, "/definitions/"+uuid.NewString()+"/status", bob.ID, `{"status":"accepted"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing definition -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPatch, "/definitions/"+def.ID+"/status", alice.ID, `{"status":"accepted"}`); w.Code != http.StatusForbidden {
		t.Fatalf("self review -> %d", w.Code)
	}

	w := doJSON(r, http.MethodPatch, "/definitions/"+def.ID+"/status", bob.ID, `{"status":"accepted"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("review -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Definition
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Status != domain.DefinitionAccepted {
		t.Fatalf("status = %q", out.Status)
	}

	// Reviews are one-shot -> 409 with the invalid_transition code.
	w = doJSON(r, http.MethodPatch, "/definitions/"+def.ID+"/status", bob.ID, `{"status":"disputed"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("second review -> %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeInvalidTransition {
		t.Fatalf("error code = %q", er.Code)
	}
}
