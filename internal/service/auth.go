package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bookstall/bookstall-go/internal/model"
	"github.com/bookstall/bookstall-go/internal/repository"
)

// AuthService handles authentication business logic.
type AuthService struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenManager
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenManager) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.LoginResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.LoginResponse{}, ErrInvalidCredentials
		}
		return model.LoginResponse{}, errors.Wrap(err, "load user")
	}

	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return model.LoginResponse{}, errors.Wrap(err, "verify password")
	}
	if !match {
		return model.LoginResponse{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.LoginResponse{}, errors.Wrap(err, "issue token")
	}

	return model.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToResponse(),
	}, nil
}

// ValidateToken resolves the caller identity from a session token.
// Invalid or expired tokens yield ErrUnauthorized.
func (s *AuthService) ValidateToken(token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, ErrUnauthorized
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return model.Identity{}, ErrUnauthorized
	}

	identity := model.Identity{UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// CurrentUser returns the account behind an authenticated identity.
func (s *AuthService) CurrentUser(ctx context.Context, identity model.Identity) (model.UserResponse, error) {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, userNotFound(identity.UserID)
		}
		return model.UserResponse{}, errors.Wrap(err, "load user")
	}
	return user.ToResponse(), nil
}
