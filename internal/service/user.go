package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bookstall/bookstall-go/internal/model"
	"github.com/bookstall/bookstall-go/internal/repository"
)

// UserService manages accounts in the identity store.
type UserService struct {
	users  UserStore
	hasher PasswordHasher
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, hasher PasswordHasher) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}
}

// Create registers a new account. The password is stored only as a hash.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (model.UserResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.UserResponse{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.UserResponse{}, errors.Wrap(err, "hash password")
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.UserResponse{}, ErrEmailTaken
		}
		return model.UserResponse{}, errors.Wrap(err, "create user")
	}

	return user.ToResponse(), nil
}

// FindAll lists every account.
func (s *UserService) FindAll(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}

	result := make([]model.UserResponse, len(users))
	for i := range users {
		result[i] = users[i].ToResponse()
	}
	return result, nil
}

// FindOne returns the account with id or a NotFoundError.
func (s *UserService) FindOne(ctx context.Context, id string) (model.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}
	return user.ToResponse(), nil
}

// FindByEmail returns nil without an error when no account uses email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*model.UserResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load user by email")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Update applies the fields present in req.
func (s *UserService) Update(ctx context.Context, id string, req model.UpdateUserRequest) (model.UserResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.UserResponse{}, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.UserResponse{}, ErrEmailTaken
		}
		return model.UserResponse{}, errors.Wrap(err, "update user")
	}

	return user.ToResponse(), nil
}

// Remove deletes the account and returns it. Unlike book removal, a missing
// account is an error. Books it owned stay sold with no owner.
func (s *UserService) Remove(ctx context.Context, id string) (model.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return model.UserResponse{}, err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, userNotFound(id)
		}
		return model.UserResponse{}, errors.Wrap(err, "delete user")
	}

	return user.ToResponse(), nil
}

func (s *UserService) load(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, userNotFound(id)
		}
		return nil, errors.Wrap(err, "load user")
	}
	return user, nil
}
