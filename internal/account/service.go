// Package account registers users, logs them in and edits their profiles.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
	"github.com/rivofx/newpulse/pkg/jwt"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged; an empty string clears an optional field.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
	Status      *string
}

// Store persists profiles. CreateProfile returns store.ErrConflict when the
// email is already registered; lookups return store.ErrNotFound.
type Store interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*models.Profile, error)
}

// Session is the result of a successful register or login.
type Session struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

// Service issues JWTs for registered profiles.
type Service struct {
	store  Store
	secret string
	ttl    time.Duration
	cost   int
}

// NewService returns an account service signing tokens with secret.
func NewService(s Store, secret string, ttl time.Duration) *Service {
	return &Service{store: s, secret: secret, ttl: ttl, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates a profile and returns a session for it.
func (s *Service) Register(ctx context.Context, displayName, email, password string) (*Session, error) {
	displayName = strings.TrimSpace(displayName)
	email = normalizeEmail(email)
	if displayName == "" {
		return nil, apperr.Invalid("display name is required")
	}
	if email == "" {
		return nil, apperr.Invalid("email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Invalid("password must be at least %d characters", MinPasswordLength)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	p := &models.Profile{
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.ErrEmailTaken
		}
		return nil, apperr.Transport(err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Service.Register",
		"profile_id": p.ID,
	}).Info("Registered profile")

	return s.session(p)
}

// Login checks the credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	p, err := s.store.GetProfileByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, apperr.Transport(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.session(p)
}

// Authenticate returns the profile id a token was issued for.
func (s *Service) Authenticate(token string) (string, error) {
	id, err := jwt.ParseToken(s.secret, token)
	if err != nil {
		return "", apperr.ErrInvalidCredentials
	}
	return id, nil
}

// GetProfile loads a profile by id.
func (s *Service) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transport(err)
	}
	return p, nil
}

// UpdateProfile applies u to the profile.
func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*models.Profile, error) {
	if u.DisplayName != nil {
		name := strings.TrimSpace(*u.DisplayName)
		if name == "" {
			return nil, apperr.Invalid("display name cannot be empty")
		}
		u.DisplayName = &name
	}
	p, err := s.store.UpdateProfile(ctx, id, u)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Transport(err)
	}
	return p, nil
}

func (s *Service) session(p *models.Profile) (*Session, error) {
	token, err := jwt.GenerateToken(s.secret, p.ID, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Profile: p}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
