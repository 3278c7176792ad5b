package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/vouchers-backend/pkg/idp"

	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller. All account
// state lives in the managed identity provider; this service only proxies
// and maps provider failures onto the API's error taxonomy.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, req LogoutRequest) error
}

type identityProvider interface {
	Login(ctx context.Context, email, password string) (*idp.TokenSet, error)
	SignOut(ctx context.Context, accessToken string) error
}

type service struct {
	provider identityProvider
}

// NewService constructs an auth service backed by the identity provider client.
func NewService(provider identityProvider) (Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("identity provider client is required")
	}
	return &service{provider: provider}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	tokens, err := s.provider.Login(ctx, email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, idp.ErrNotAuthorized):
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		case errors.Is(err, idp.ErrUserNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity provider login")
		}
	}

	return &LoginResponse{
		IDToken:      tokens.IDToken,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}, nil
}

// Logout revokes every provider session tied to the access token. An already
// invalid token maps to unauthorized, same as any other bad credential.
func (s *service) Logout(ctx context.Context, req LogoutRequest) error {
	if strings.TrimSpace(req.AccessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access_token is required")
	}

	if err := s.provider.SignOut(ctx, req.AccessToken); err != nil {
		switch {
		case errors.Is(err, idp.ErrNotAuthorized):
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "token is not valid")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity provider sign out")
		}
	}
	return nil
}
