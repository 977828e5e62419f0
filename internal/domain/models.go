// Package domain defines the persistence models for debates, messages,
// definitions, and moderation analyses. These types are mapped with GORM
// and form the core data layer of the debate platform.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User is an account that can create and join debates. The password hash is
// never serialized; the core only ever reads user identity.
type User struct {
	ID           string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"    gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"        gorm:"type:varchar(128);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Debate is a structured two-party exchange. The creator owns the debate; a
// second participant binds once via the invite code and never unbinds.
//
// Invariants:
//   - CreatorID != OpponentID, always.
//   - OpponentID is set at most once (conditional update in the repo layer).
//   - Status only moves along the table in lifecycle.go.
type Debate struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title"       gorm:"type:varchar(255);not null"`
	Topic       string    `json:"topic"       gorm:"type:text;not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Status      string    `json:"status"      gorm:"type:varchar(16);not null;default:'setup';check:status IN ('setup','active','paused','finished')"`
	InviteCode  string    `json:"invite_code" gorm:"type:char(8);not null;uniqueIndex:ux_debates_invite_code"`
	CreatorID   string    `json:"creator_id"  gorm:"type:char(36);not null;index:idx_debates_creator"`
	OpponentID  *string   `json:"opponent_id" gorm:"type:char(36);index:idx_debates_opponent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Creator  *User `json:"creator,omitempty"  gorm:"foreignKey:CreatorID;references:ID"`
	Opponent *User `json:"opponent,omitempty" gorm:"foreignKey:OpponentID;references:ID"`

	// Definitions is the debate's shared glossary, loaded on demand.
	Definitions []Definition `json:"definitions,omitempty" gorm:"foreignKey:DebateID;references:ID"`
}

// TableName returns the database table name for Debate.
func (Debate) TableName() string { return "debates" }

// IsParticipant reports whether userID is the creator or the bound opponent.
// Only participants may read or act on a debate.
func (d *Debate) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	if d.CreatorID == userID {
		return true
	}
	return d.OpponentID != nil && *d.OpponentID == userID
}

// Sender types for Message.
const (
	SenderUser   = "user"
	SenderSystem = "system"
)

// Message is a single utterance in a debate. The ledger is append-only:
// messages are never edited or deleted, and (CreatedAt, ID) is the
// authoritative ordering key.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	DebateID   string    `json:"debate_id"   gorm:"type:char(36);not null;index:idx_debate_msgs,priority:1"`
	SenderID   string    `json:"sender_id"   gorm:"type:char(36);not null"`
	SenderType string    `json:"sender_type" gorm:"type:varchar(16);not null;default:'user';check:sender_type IN ('user','system')"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_debate_msgs,priority:2"`

	Debate   Debate    `json:"-"                  gorm:"foreignKey:DebateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Sender   *User     `json:"sender,omitempty"   gorm:"foreignKey:SenderID;references:ID"`
	Analysis *Analysis `json:"analysis,omitempty" gorm:"foreignKey:MessageID;references:ID"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Definition statuses. Proposed definitions are reviewed by the other
// participant and end up accepted or disputed; both are terminal.
const (
	DefinitionProposed = "proposed"
	DefinitionAccepted = "accepted"
	DefinitionDisputed = "disputed"
)

// Definition is an entry in a debate's shared glossary: a term plus the
// meaning one participant proposes both sides commit to.
type Definition struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	DebateID     string    `json:"debate_id"  gorm:"type:char(36);not null;index:idx_debate_defs"`
	Term         string    `json:"term"       gorm:"type:varchar(255);not null"`
	Definition   string    `json:"definition" gorm:"type:text;not null"`
	Status       string    `json:"status"     gorm:"type:varchar(16);not null;default:'proposed';check:status IN ('proposed','accepted','disputed')"`
	ProposedByID string    `json:"proposed_by_id" gorm:"type:char(36);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Debate     Debate `json:"-"                     gorm:"foreignKey:DebateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	ProposedBy *User  `json:"proposed_by,omitempty" gorm:"foreignKey:ProposedByID;references:ID"`
}

// TableName returns the database table name for Definition.
func (Definition) TableName() string { return "definitions" }

// Severity levels for an Analysis verdict.
const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Issue categories produced by the moderation engine.
const (
	IssueFallacy       = "fallacy"
	IssueAmbiguity     = "ambiguity"
	IssueLogicalError  = "logical_error"
	IssueCognitiveBias = "cognitive_bias"
)

// Issue is a single structured moderation finding. Quote carries the exact
// offending span of the analyzed message when the model can cite one.
type Issue struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quote       string `json:"quote,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// IssueList is an ordered sequence of findings. In code it is a plain slice;
// it serializes to JSON only at the storage boundary so display logic can
// reconstruct every field losslessly.
type IssueList []Issue

// Value implements driver.Valuer, encoding the list as a JSON text column.
func (l IssueList) Value() (driver.Value, error) {
	if l == nil {
		l = IssueList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. NULL and empty text decode to an empty list.
func (l *IssueList) Scan(src any) error {
	if src == nil {
		*l = IssueList{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("issues: cannot scan %T", src)
	}
	if len(b) == 0 {
		*l = IssueList{}
		return nil
	}
	var out IssueList
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	if out == nil {
		out = IssueList{}
	}
	*l = out
	return nil
}

// Analysis is the moderation verdict for one message. The unique index on
// MessageID is the hard backstop for the one-analysis-per-message invariant;
// a stored analysis is never updated.
type Analysis struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;uniqueIndex:ux_analyses_message"`
	Passed    bool      `json:"passed"     gorm:"not null"`
	Severity  string    `json:"severity"   gorm:"type:varchar(8);not null;default:'none';check:severity IN ('none','low','medium','high')"`
	Issues    IssueList `json:"issues"     gorm:"type:text"`
	Summary   string    `json:"summary"    gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Analysis.
func (Analysis) TableName() string { return "analyses" }

// Persisted reports whether this verdict was stored. Degraded fail-open
// verdicts are returned to callers without an ID and are never written.
func (a *Analysis) Persisted() bool { return a != nil && a.ID != "" }
