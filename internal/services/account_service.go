// Package services – AccountService
//
// This file implements AccountService, which handles user registration:
// input validation, uniqueness checks, and password hashing with bcrypt.
package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
)

// bcryptCost is the work factor applied to stored password hashes.
const bcryptCost = 10

// AccountService provides account registration.
type AccountService struct {
	DB *gorm.DB
}

// Register creates a new user account. Usernames must be at least three
// characters and passwords at least six; both username and email must be
// unused. The returned user never carries the password hash to the client
// because the field is excluded from JSON.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if len(username) < 3 {
		return nil, ErrUsernameTooShort
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(s.DB.WithContext(ctx), username, email, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// Get fetches a user by ID.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.User, error) {
	return repo.GetUser(s.DB.WithContext(ctx), id)
}
