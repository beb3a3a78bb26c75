// Package auth implements the username/password collaborator behind /register and
// /login. Passwords are stored as bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/zoonotic-report-server/internal/domain"
)

const (
	minPasswordLength = 6
	maxUsernameLength = 64
)

// Service implements domain.Authenticator over a UserStore.
type Service struct {
	users  domain.UserStore
	cost   int
	logger *logrus.Logger
}

// NewService creates an authenticator. cost 0 selects bcrypt.DefaultCost.
func NewService(users domain.UserStore, cost int, logger *logrus.Logger) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{users: users, cost: cost, logger: logger}
}

// Register creates an account. A taken username yields domain.ErrUserExists.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.Create(ctx, &domain.User{Username: username, PasswordHash: string(hash)}); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return err
		}
		return fmt.Errorf("failed to create user: %w: %w", domain.ErrStorageFailure, err)
	}

	s.logger.WithField("username", username).Info("User registered")
	return nil
}

// Authenticate reports whether the credentials match. An unknown user and a wrong
// password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, &domain.ValidationError{Field: "credentials", Message: "username and password are required"}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return false, nil
		}
		return false, fmt.Errorf("failed to look up user: %w: %w", domain.ErrStorageFailure, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("Failed login attempt")
		return false, nil
	}
	return true, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

func validateCredentials(username, password string) error {
	switch {
	case username == "" || password == "":
		return &domain.ValidationError{Field: "credentials", Message: "username and password are required"}
	case len(username) > maxUsernameLength:
		return &domain.ValidationError{Field: "username", Message: fmt.Sprintf("must be at most %d characters", maxUsernameLength)}
	case len(password) < minPasswordLength:
		return &domain.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	case len(password) > 72:
		return &domain.ValidationError{Field: "password", Message: "must be at most 72 bytes"}
	}
	return nil
}
