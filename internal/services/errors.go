// Package services defines the business logic for debates, messages,
// definitions, moderation, and accounts. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

// Debate-related errors.
var (
	// ErrDebateNotFound indicates that the requested debate does not exist.
	ErrDebateNotFound = errors.New("debate not found")

	// ErrNotParticipant is returned when the acting user is neither the
	// creator nor the opponent of the debate.
	ErrNotParticipant = errors.New("user is not a participant of this debate")

	// ErrInviteNotFound indicates the invite code matches no debate.
	ErrInviteNotFound = errors.New("invite code not found")

	// ErrSelfJoin is returned when a creator tries to join their own debate
	// as the opponent.
	ErrSelfJoin = errors.New("cannot join your own debate")

	// ErrDebateFull is returned when a third party tries to join a debate
	// whose opponent seat is already taken.
	ErrDebateFull = errors.New("debate already has an opponent")

	// ErrTitleRequired is returned when a debate is created without a title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTopicRequired is returned when a debate is created without a topic.
	ErrTopicRequired = errors.New("topic is required")
)

// Message-related errors.
var (
	// ErrEmptyContent is returned when a message body is empty after trim.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrTooLong is returned when message content exceeds the configured
	// maximum rune length.
	ErrTooLong = errors.New("message content too long")

	// ErrDebateFinished is returned when writing to a finished debate.
	ErrDebateFinished = errors.New("debate is finished")

	// ErrDebatePaused is returned when posting a message to a paused debate.
	ErrDebatePaused = errors.New("debate is paused")

	// ErrMessageNotFound indicates that the requested message does not exist
	// within the debate.
	ErrMessageNotFound = errors.New("message not found")
)

// Definition-related errors.
var (
	// ErrTermRequired is returned when a proposed definition lacks a term
	// or body.
	ErrTermRequired = errors.New("term and definition are required")

	// ErrDuplicateTerm is returned when the debate already carries a
	// definition for the same term (case-insensitive).
	ErrDuplicateTerm = errors.New("term already defined in this debate")

	// ErrDefinitionNotFound indicates the definition does not exist.
	ErrDefinitionNotFound = errors.New("definition not found")

	// ErrSelfReview is returned when a proposer tries to accept or dispute
	// their own definition.
	ErrSelfReview = errors.New("cannot review your own definition")

	// ErrInvalidDefinitionStatus is returned for review targets other than
	// accepted or disputed.
	ErrInvalidDefinitionStatus = errors.New("definition status must be accepted or disputed")
)

// Account-related errors.
var (
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUsernameTooShort is returned for usernames under three characters.
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")

	// ErrPasswordTooShort is returned for passwords under six characters.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

// InvalidTransitionError reports a debate or definition state change the
// lifecycle rules forbid. Handlers unwrap it with errors.As to echo the
// offending pair back to the client.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %q to %q", e.From, e.To)
}
