// Package auth manages API users and the access tokens that protect the
// gateway routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vietddude/microgate/internal/core/apperr"
	"github.com/vietddude/microgate/internal/core/domain"
	"github.com/vietddude/microgate/internal/infra/storage"
)

const invalidCredentials = "Invalid credentials."

// Service registers users, logs them in and authenticates bearer tokens.
type Service struct {
	users storage.UserRepository
	jwt   *JWTManager
	cost  int
}

// NewService creates a Service. jwt may be nil when the service is only used
// to register users.
func NewService(users storage.UserRepository, jwt *JWTManager) *Service {
	return &Service{users: users, jwt: jwt, cost: bcrypt.DefaultCost}
}

// CreateUser validates and stores a new API user.
func (s *Service) CreateUser(ctx context.Context, creds domain.UserCredentials) (*domain.Response, error) {
	if err := domain.Validate(creds); err != nil {
		return nil, apperr.NewHTTP(http.StatusBadRequest, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     creds.Username,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.NewHTTP(http.StatusConflict, "Username already exists.")
		}
		return nil, err
	}

	return &domain.Response{
		StatusCode: http.StatusCreated,
		Message:    fmt.Sprintf("API user [%s] successfully registered", user.Username),
	}, nil
}

// Login checks the credentials and issues an access token. ExpiresIn is the
// expiry as a unix timestamp in milliseconds.
func (s *Service) Login(ctx context.Context, creds domain.UserCredentials) (*domain.AccessToken, error) {
	if err := domain.Validate(creds); err != nil {
		return nil, apperr.NewHTTP(http.StatusBadRequest, err.Error())
	}

	user, err := s.users.FindByUsername(ctx, creds.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	token, expiresAt, err := s.jwt.GenerateToken(user.Username)
	if err != nil {
		return nil, err
	}

	return &domain.AccessToken{
		AccessToken: token,
		ExpiresIn:   strconv.FormatInt(expiresAt.UnixMilli(), 10),
	}, nil
}

// Authenticate resolves a bearer token to a user that still exists.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, apperr.Unauthorized("Unauthorized")
	}

	user, err := s.users.FindByUsername(ctx, claims.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the authenticated user stored in ctx.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey{}).(*domain.User)
	return user, ok
}
