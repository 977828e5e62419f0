package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
)

// ----- Shared sqlite helpers -----

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedSvcUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u, err := repo.CreateUser(db, username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedSvcDebate(t *testing.T, db *gorm.DB, creatorID string) *domain.Debate {
	t.Helper()
	d, err := repo.CreateDebate(context.Background(), db, creatorID, "T", "topic", "", strings.ToUpper(uuid.NewString()[:8]))
	if err != nil {
		t.Fatalf("seed debate: %v", err)
	}
	return d
}

func bindSvcOpponent(t *testing.T, db *gorm.DB, debateID, userID string) {
	t.Helper()
	ok, err := repo.BindOpponent(context.Background(), db, debateID, userID)
	if err != nil || !ok {
		t.Fatalf("bind opponent: ok=%v err=%v", ok, err)
	}
}

func forceStatus(t *testing.T, db *gorm.DB, debateID, status string) {
	t.Helper()
	if err := db.Model(&domain.Debate{}).Where("id = ?", debateID).Update("status", status).Error; err != nil {
		t.Fatalf("force status: %v", err)
	}
}

// ----- Append -----

func TestAppend_ContentValidation(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db, MaxContentRunes: 10}
	ctx := context.Background()

	if _, err := s.Append(ctx, "u1", "d1", "   \n\t "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: got %v", err)
	}
	if _, err := s.Append(ctx, "u1", "d1", strings.Repeat("é", 11)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("too long: got %v", err)
	}
}

func TestAppend_DebateGuards(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db}
	ctx := context.Background()

	alice := seedSvcUser(t, db, "alice")
	bob := seedSvcUser(t, db, "bob")
	carol := seedSvcUser(t, db, "carol")
	d := seedSvcDebate(t, db, alice.ID)
	bindSvcOpponent(t, db, d.ID, bob.ID)

	if _, err := s.Append(ctx, alice.ID, uuid.NewString(), "hi"); !errors.Is(err, ErrDebateNotFound) {
		t.Fatalf("missing debate: got %v", err)
	}
	if _, err := s.Append(ctx, carol.ID, d.ID, "hi"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: got %v", err)
	}

	forceStatus(t, db, d.ID, domain.StatusPaused)
	if _, err := s.Append(ctx, alice.ID, d.ID, "hi"); !errors.Is(err, ErrDebatePaused) {
		t.Fatalf("paused: got %v", err)
	}
	forceStatus(t, db, d.ID, domain.StatusFinished)
	if _, err := s.Append(ctx, alice.ID, d.ID, "hi"); !errors.Is(err, ErrDebateFinished) {
		t.Fatalf("finished: got %v", err)
	}
}

func TestAppend_SetupWithoutOpponentStaysSetup(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db}
	ctx := context.Background()

	alice := seedSvcUser(t, db, "alice")
	d := seedSvcDebate(t, db, alice.ID)

	m, err := s.Append(ctx, alice.ID, d.ID, "opening statement")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if m.SenderID != alice.ID || m.Content != "opening statement" {
		t.Fatalf("unexpected message: %+v", m)
	}

	got, err := repo.GetDebate(ctx, db, d.ID)
	if err != nil || got.Status != domain.StatusSetup {
		t.Fatalf("status = %q err=%v, want setup until opponent joins", got.Status, err)
	}
}

func TestAppend_ActivatesSeatedSetupDebateOnce(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db}
	ctx := context.Background()

	alice := seedSvcUser(t, db, "alice")
	bob := seedSvcUser(t, db, "bob")
	d := seedSvcDebate(t, db, alice.ID)
	bindSvcOpponent(t, db, d.ID, bob.ID)

	if _, err := s.Append(ctx, bob.ID, d.ID, "ready when you are"); err != nil {
		t.Fatalf("first append: %v", err)
	}
	got, err := repo.GetDebate(ctx, db, d.ID)
	if err != nil || got.Status != domain.StatusActive {
		t.Fatalf("status = %q err=%v, want active after first message", got.Status, err)
	}

	if _, err := s.Append(ctx, alice.ID, d.ID, "likewise"); err != nil {
		t.Fatalf("second append: %v", err)
	}
	got, err = repo.GetDebate(ctx, db, d.ID)
	if err != nil || got.Status != domain.StatusActive {
		t.Fatalf("status = %q err=%v after second message", got.Status, err)
	}

	msgs, err := repo.ListMessages(ctx, db, d.ID, nil)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("ledger len = %d err=%v", len(msgs), err)
	}
}

func TestAppend_BumpsDebateActivity(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db}
	ctx := context.Background()

	alice := seedSvcUser(t, db, "alice")
	d := seedSvcDebate(t, db, alice.ID)

	before, err := repo.GetDebate(ctx, db, d.ID)
	if err != nil {
		t.Fatalf("GetDebate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Append(ctx, alice.ID, d.ID, "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	after, err := repo.GetDebate(ctx, db, d.ID)
	if err != nil {
		t.Fatalf("GetDebate: %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at not bumped: before=%v after=%v", before.UpdatedAt, after.UpdatedAt)
	}
}

// ----- List -----

func TestMessageList_GuardsAndIncrementalRead(t *testing.T) {
	db := newServiceDB(t)
	s := &MessageService{DB: db}
	ctx := context.Background()

	alice := seedSvcUser(t, db, "alice")
	bob := seedSvcUser(t, db, "bob")
	carol := seedSvcUser(t, db, "carol")
	d := seedSvcDebate(t, db, alice.ID)
	bindSvcOpponent(t, db, d.ID, bob.ID)

	if _, err := s.List(ctx, alice.ID, uuid.NewString(), nil); !errors.Is(err, ErrDebateNotFound) {
		t.Fatalf("missing debate: got %v", err)
	}
	if _, err := s.List(ctx, carol.ID, d.ID, nil); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: got %v", err)
	}

	m1, err := s.Append(ctx, alice.ID, d.ID, "first")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	m2, err := s.Append(ctx, bob.ID, d.ID, "second")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := s.List(ctx, bob.ID, d.ID, nil)
	if err != nil || len(all) != 2 || all[0].ID != m1.ID || all[1].ID != m2.ID {
		t.Fatalf("full read: %+v err=%v", all, err)
	}

	after := m1.CreatedAt
	tail, err := s.List(ctx, alice.ID, d.ID, &after)
	if err != nil || len(tail) != 1 || tail[0].ID != m2.ID {
		t.Fatalf("incremental read: %+v err=%v", tail, err)
	}
}
