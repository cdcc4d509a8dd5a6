// Package user provides user domain models and behaviors.
package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatlima-server/internal/utils/platformerrors"
)

// User is either a signed-in account or an anonymous session owner.
type User struct {
	ID           string
	Issuer       string
	Subject      string
	Email        *string
	Name         *string
	IsAnonymous  bool
	IsAdmin      bool
	LastActiveAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity encapsulates the externally provided identity attributes.
type Identity struct {
	Issuer      string
	Subject     string
	Email       *string
	Name        *string
	IsAnonymous bool
}

// Repository defines storage operations for users.
type Repository interface {
	// FindByID returns nil when the user does not exist.
	FindByID(ctx context.Context, id string) (*User, error)
	FindByIssuerAndSubject(ctx context.Context, issuer, subject string) (*User, error)
	Create(ctx context.Context, user *User) error
	// Upsert inserts or refreshes the profile; created reports whether a row was inserted.
	Upsert(ctx context.Context, user *User) (persisted *User, created bool, err error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// CreditGranter grants the signup bonus to new accounts.
type CreditGranter interface {
	GrantSignupBonus(ctx context.Context, userID string) error
}

// Settings configure user bootstrap.
type Settings struct {
	Issuer   string
	AdminIDs []string
}

// Service persists and resolves users.
type Service struct {
	repo     Repository
	credits  CreditGranter
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
}

// NewService constructs a Service with required dependencies.
func NewService(repo Repository, credits CreditGranter, settings Settings, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		credits:  credits,
		settings: settings,
		log:      log.With().Str("component", "user").Logger(),
		now:      time.Now,
	}
}

// CreateAnonymous creates a new anonymous user whose subject is its own id.
func (s *Service) CreateAnonymous(ctx context.Context) (*User, error) {
	now := s.now().UTC()
	id := uuid.NewString()
	u := &User{
		ID:           id,
		Issuer:       s.settings.Issuer,
		Subject:      id,
		IsAnonymous:  true,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create anonymous user")
	}
	s.log.Info().Str("user_id", id).Msg("anonymous user created")
	return u, nil
}

// EnsureUser persists the given identity and returns the internal user record.
// A newly created signed-in account receives the signup bonus.
func (s *Service) EnsureUser(ctx context.Context, identity Identity) (*User, error) {
	if identity.Issuer == "" || identity.Subject == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid identity: issuer and subject are required", nil, "d5b8e1a3-6f27-4c9d-a0e4-3b7f1c8d2e59")
	}

	// tokens we issue carry our own user id as subject
	if identity.Issuer == s.settings.Issuer {
		u, err := s.repo.FindByID(ctx, identity.Subject)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load user")
		}
		if u != nil {
			return s.decorate(u), nil
		}
	}

	now := s.now().UTC()
	u, created, err := s.repo.Upsert(ctx, &User{
		ID:           uuid.NewString(),
		Issuer:       identity.Issuer,
		Subject:      identity.Subject,
		Email:        identity.Email,
		Name:         identity.Name,
		IsAnonymous:  identity.IsAnonymous,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert user")
	}
	if created && !u.IsAnonymous && s.credits != nil {
		if err := s.credits.GrantSignupBonus(ctx, u.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", u.ID).Msg("signup bonus not granted")
		}
	}
	return s.decorate(u), nil
}

// GetUser returns NOT_FOUND when the user does not exist.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load user")
	}
	if u == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "user not found", nil, "1e9c4f7a-2b85-4d3e-9a6c-0f8b3d5e7a21")
	}
	return s.decorate(u), nil
}

// TouchLastActive records activity so the user is not picked up by cleanup. Failures are logged only.
func (s *Service) TouchLastActive(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.repo.TouchLastActive(ctx, id, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("user_id", id).Msg("failed to update last activity")
	}
}

// IsAdminID reports whether id is configured as an administrator.
func (s *Service) IsAdminID(id string) bool {
	for _, admin := range s.settings.AdminIDs {
		if admin != "" && admin == id {
			return true
		}
	}
	return false
}

func (s *Service) decorate(u *User) *User {
	u.IsAdmin = s.IsAdminID(u.ID)
	return u
}
