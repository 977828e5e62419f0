package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"github.com/tbourn/go-debate-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:debate_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Minimal shim implementing services.DebateRepo using the repo package
// (like router.go).
type testDebateRepo struct{}

func (testDebateRepo) CreateDebate(ctx context.Context, db *gorm.DB, creatorID, title, topic, description, inviteCode string) (*domain.Debate, error) {
	return repo.CreateDebate(ctx, db, creatorID, title, topic, description, inviteCode)
}

func (testDebateRepo) GetDebate(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	return repo.GetDebate(ctx, db, id)
}

func (testDebateRepo) GetDebateDetail(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	return repo.GetDebateDetail(ctx, db, id)
}

func (testDebateRepo) FindDebateByInviteCode(ctx context.Context, db *gorm.DB, code string) (*domain.Debate, error) {
	return repo.FindDebateByInviteCode(ctx, db, code)
}

func (testDebateRepo) CountDebates(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountDebates(ctx, db, userID)
}

func (testDebateRepo) ListDebatesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debate, error) {
	return repo.ListDebatesPage(ctx, db, userID, offset, limit)
}

func (testDebateRepo) BindOpponent(ctx context.Context, db *gorm.DB, debateID, userID string) (bool, error) {
	return repo.BindOpponent(ctx, db, debateID, userID)
}

func (testDebateRepo) UpdateDebateStatus(ctx context.Context, db *gorm.DB, debateID, from, to string) (bool, error) {
	return repo.UpdateDebateStatus(ctx, db, debateID, from, to)
}

// newTestHandlers wires real services over an in-memory DB, exactly like the
// router does in production.
func newTestHandlers(t *testing.T, db *gorm.DB, ai llm.Client) *Handlers {
	t.Helper()
	debateSvc := services.NewDebateService(db, testDebateRepo{})
	msgSvc := &services.MessageService{DB: db, MaxContentRunes: 4000}
	defSvc := &services.DefinitionService{DB: db}
	modSvc := services.NewModerationService(db, ai)
	acctSvc := &services.AccountService{DB: db}
	return New(debateSvc, msgSvc, defSvc, modSvc, acctSvc)
}

func seedHandlerUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(db, username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func doJSON(r *gin.Engine, method, path, userID string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	r.ServeHTTP(w, req)
	return w
}

// ---------- helpers-only tests ----------

func Test_currentUser_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No identity anywhere -> not ok.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	if uid, okUser := currentUser(c); okUser || uid != "" {
		t.Fatalf("anonymous currentUser = %q, %v", uid, okUser)
	}

	// Context value wins.
	c.Set("userID", "u1")
	if uid, okUser := currentUser(c); !okUser || uid != "u1" {
		t.Fatalf("ctx currentUser = %q, %v", uid, okUser)
	}

	// Header fallback.
	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-User-ID", "u-123")
	cH.Request = reqH
	if uid, okUser := currentUser(cH); !okUser || uid != "u-123" {
		t.Fatalf("header currentUser = %q, %v", uid, okUser)
	}

	// clampPagination bounds
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c2)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c3)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

// ---------- CreateDebate ----------

func TestCreateDebate_Unauthorized_BadJSON_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.POST("/debates", h.CreateDebate)

	alice := seedHandlerUser(t, db, "alice")

	// Missing identity -> 401
	if w := doJSON(r, http.MethodPost, "/debates", "", `{"title":"T","topic":"X"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous -> %d", w.Code)
	}

	// Bad JSON -> 400
	if w := doJSON(r, http.MethodPost, "/debates", alice.ID, "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Success -> 201 with invite code and setup status
	w := doJSON(r, http.MethodPost, "/debates", alice.ID, `{"title":"  Free   Will ","topic":"Is it real?","description":"three rounds"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Debate
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Title != "Free Will" || out.Status != domain.StatusSetup || len(out.InviteCode) != 8 {
		t.Fatalf("unexpected debate: %#v", out)
	}
	if out.CreatorID != alice.ID || out.Description != "three rounds" {
		t.Fatalf("unexpected debate: %#v", out)
	}
}

// ---------- ListDebates ----------

func TestListDebates_ETag304_and_Page(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.GET("/debates", h.ListDebates)
	r.POST("/debates", h.CreateDebate)

	alice := seedHandlerUser(t, db, "alice")
	for i := 0; i < 3; i++ {
		w := doJSON(r, http.MethodPost, "/debates", alice.ID, fmt.Sprintf(`{"title":"T%d","topic":"X"}`, i))
		if w.Code != http.StatusCreated {
			t.Fatalf("seed create -> %d", w.Code)
		}
	}

	w := doJSON(r, http.MethodGet, "/debates?page=1&page_size=2", alice.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	var out ListDebatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Debates) != 2 || out.Pagination.Total != 3 || out.Pagination.TotalPages != 2 || !out.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", out.Pagination)
	}

	// Replay with If-None-Match -> 304
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debates?page=1&page_size=2", nil)
	req.Header.Set("X-User-ID", alice.ID)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("if-none-match -> %d", w2.Code)
	}
}

// ---------- GetDebate ----------

func TestGetDebate_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.GET("/debates/:id", h.GetDebate)

	alice := seedHandlerUser(t, db, "alice")
	carol := seedHandlerUser(t, db, "carol")
	d, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "CODE0001")
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}

	if w := doJSON(r, http.MethodGet, "/debates/not-a-uuid", alice.ID, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/debates/"+uuid.NewString(), alice.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/debates/"+d.ID, carol.ID, ""); w.Code != http.StatusForbidden {
		t.Fatalf("stranger -> %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/debates/"+d.ID, alice.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Debate
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.ID != d.ID || out.Creator == nil || out.Creator.Username != "alice" {
		t.Fatalf("unexpected debate: %#v", out)
	}
}

// ---------- JoinDebate ----------

func TestJoinDebate_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.POST("/debates/join", h.JoinDebate)

	alice := seedHandlerUser(t, db, "alice")
	bob := seedHandlerUser(t, db, "bob")
	carol := seedHandlerUser(t, db, "carol")
	if _, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "AB12CD34"); err != nil {
		t.Fatalf("seed debate: %v", err)
	}

	if w := doJSON(r, http.MethodPost, "/debates/join", bob.ID, `{"invite_code":"NOPE0000"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown code -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/debates/join", alice.ID, `{"invite_code":"AB12CD34"}`); w.Code != http.StatusConflict {
		t.Fatalf("self join -> %d", w.Code)
	}

	// Lowercase codes still match.
	w := doJSON(r, http.MethodPost, "/debates/join", bob.ID, `{"invite_code":"ab12cd34"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("join -> %d body=%s", w.Code, w.Body.String())
	}
	var joined domain.Debate
	if err := json.Unmarshal(w.Body.Bytes(), &joined); err != nil {
		t.Fatalf("json: %v", err)
	}
	if joined.OpponentID == nil || *joined.OpponentID != bob.ID {
		t.Fatalf("opponent not seated: %#v", joined)
	}

	// Re-join is idempotent; a third party conflicts.
	if w := doJSON(r, http.MethodPost, "/debates/join", bob.ID, `{"invite_code":"AB12CD34"}`); w.Code != http.StatusOK {
		t.Fatalf("re-join -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/debates/join", carol.ID, `{"invite_code":"AB12CD34"}`); w.Code != http.StatusConflict {
		t.Fatalf("full -> %d", w.Code)
	}
}

// ---------- UpdateDebateStatus ----------

func TestUpdateDebateStatus_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := newTestHandlers(t, db, nil)
	r := gin.New()
	r.PATCH("/debates/:id/status", h.UpdateDebateStatus)

	alice := seedHandlerUser(t, db, "alice")
	d, err := repo.CreateDebate(context.Background(), db, alice.ID, "T", "topic", "", "CODE0001")
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}

	// setup -> paused is not allowed; the envelope carries the stable code.
	w := doJSON(r, http.MethodPatch, "/debates/"+d.ID+"/status", alice.ID, `{"status":"paused"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("illegal transition -> %d body=%s", w.Code, w.Body.String())
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeInvalidTransition {
		t.Fatalf("error code = %q", er.Code)
	}

	// setup -> active works.
	w = doJSON(r, http.MethodPatch, "/debates/"+d.ID+"/status", alice.ID, `{"status":"active"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("activate -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Debate
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Status != domain.StatusActive {
		t.Fatalf("status = %q", out.Status)
	}

	// finished is terminal.
	if w := doJSON(r, http.MethodPatch, "/debates/"+d.ID+"/status", alice.ID, `{"status":"finished"}`); w.Code != http.StatusOK {
		t.Fatalf("finish -> %d", w.Code)
	}
	if w := doJSON(r, http.MethodPatch, "/debates/"+d.ID+"/status", alice.ID, `{"status":"active"}`); w.Code != http.StatusConflict {
		t.Fatalf("reopen -> %d", w.Code)
	}
}
