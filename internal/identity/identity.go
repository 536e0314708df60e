// Package identity owns user records: registration with password hashing,
// credential verification and login bookkeeping.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"messagely/internal/common"
	"messagely/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage.Store used by Service
type Store interface {
	CreateUser(ctx context.Context, u storage.NewUser) (storage.UserSummary, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	TouchLastLogin(ctx context.Context, username string) error
	User(ctx context.Context, username string) (storage.User, error)
	Users(ctx context.Context) ([]storage.UserSummary, error)
}

// Registration holds the fields required to register a user
type Registration struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

func (r Registration) validate() error {
	fields := []struct {
		name, value string
	}{
		{"username", r.Username},
		{"password", r.Password},
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"phone", r.Phone},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("field %q is required: %w", f.name, common.ErrValidation)
		}
	}
	if len(r.Password) > MaxPasswordLength {
		return fmt.Errorf("field \"password\" must be at most %d bytes: %w", MaxPasswordLength, common.ErrValidation)
	}
	return nil
}

// Service registers and authenticates users
type Service struct {
	logger *zap.SugaredLogger
	store  Store
	hasher Hasher

	// decoy is the hash compared against for unknown usernames, set once hashing succeeds
	decoyMu sync.Mutex
	decoy   string
}

func New(logger *zap.SugaredLogger, store Store, hasher Hasher) *Service {
	return &Service{
		logger: logger,
		store:  store,
		hasher: hasher,
	}
}

// Register hashes the password and persists a new user
func (s *Service) Register(ctx context.Context, r Registration) (storage.UserSummary, error) {
	if err := r.validate(); err != nil {
		return storage.UserSummary{}, err
	}

	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return storage.UserSummary{}, fmt.Errorf("hashing password: %w", err)
	}

	u, err := s.store.CreateUser(ctx, storage.NewUser{
		Username:     r.Username,
		PasswordHash: hash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Phone:        r.Phone,
	})
	if err != nil {
		if storage.IsIntegrity(err, storage.UniqueViolation) {
			return storage.UserSummary{}, fmt.Errorf("user %q: %w", r.Username, common.ErrDuplicateIdentity)
		}
		return storage.UserSummary{}, fmt.Errorf("s.store.CreateUser: %w", err)
	}

	s.logger.Infof("Registered user (%s)", u.Username)
	return u, nil
}

// Authenticate reports whether password matches the stored hash of username.
// A missing user and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	hash, err := s.store.PasswordHash(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			decoy, err := s.decoyHash()
			if err != nil {
				return false, err
			}
			s.hasher.Compare(decoy, password)
			return false, nil
		}
		return false, fmt.Errorf("s.store.PasswordHash: %w", err)
	}

	return s.hasher.Compare(hash, password), nil
}

// UpdateLoginTimestamp sets the last login time of username to now
func (s *Service) UpdateLoginTimestamp(ctx context.Context, username string) error {
	err := s.store.TouchLastLogin(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %q: %w", username, common.ErrNotFound)
	}
	return err
}

// Login verifies credentials and records the login. Failing to record the login is logged and
// does not fail the login itself.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password required: %w", common.ErrValidation)
	}

	ok, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	if err := s.UpdateLoginTimestamp(ctx, username); err != nil {
		s.logger.Warnf("Updating last login of user (%s): %v", username, err)
	}

	return nil
}

// Get returns the profile of username
func (s *Service) Get(ctx context.Context, username string) (storage.User, error) {
	u, err := s.store.User(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, fmt.Errorf("user %q: %w", username, common.ErrNotFound)
		}
		return storage.User{}, fmt.Errorf("s.store.User: %w", err)
	}
	return u, nil
}

// All returns basic info on every user
func (s *Service) All(ctx context.Context) ([]storage.UserSummary, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.store.Users: %w", err)
	}
	return users, nil
}

func (s *Service) decoyHash() (string, error) {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()

	if s.decoy != "" {
		return s.decoy, nil
	}

	hash, err := s.hasher.Hash("decoy password")
	if err != nil {
		return "", fmt.Errorf("hashing decoy password: %w", err)
	}
	s.decoy = hash
	return hash, nil
}
