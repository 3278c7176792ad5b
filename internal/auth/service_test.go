package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/idp"
)

type stubProvider struct {
	tokens    *idp.TokenSet
	loginErr  error
	signOut   error
	lastEmail string
}

func (s *stubProvider) Login(_ context.Context, email, _ string) (*idp.TokenSet, error) {
	s.lastEmail = email
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.tokens, nil
}

func (s *stubProvider) SignOut(_ context.Context, _ string) error {
	return s.signOut
}

func TestLoginReturnsTokenSet(t *testing.T) {
	provider := &stubProvider{tokens: &idp.TokenSet{
		IDToken:     "id-token",
		AccessToken: "access-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}}
	svc, err := NewService(provider)
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  Admin@Example.COM ", Password: "hunter2!pass"})
	require.NoError(t, err)
	assert.Equal(t, "access-token", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "admin@example.com", provider.lastEmail, "email is normalized before the provider call")
}

func TestLoginMapsNotAuthorized(t *testing.T) {
	provider := &stubProvider{loginErr: idp.ErrNotAuthorized}
	svc, err := NewService(provider)
	require.NoError(t, err)

	_, loginErr := svc.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "wrongwrong"})
	require.Error(t, loginErr)
	typed := pkgerrors.As(loginErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLoginMapsUserNotFound(t *testing.T) {
	provider := &stubProvider{loginErr: idp.ErrUserNotFound}
	svc, err := NewService(provider)
	require.NoError(t, err)

	_, loginErr := svc.Login(context.Background(), LoginRequest{Email: "ghost@b.com", Password: "hunter2!pass"})
	require.Error(t, loginErr)
	typed := pkgerrors.As(loginErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestLoginMapsProviderOutage(t *testing.T) {
	provider := &stubProvider{loginErr: errors.New("connection refused")}
	svc, err := NewService(provider)
	require.NoError(t, err)

	_, loginErr := svc.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "hunter2!pass"})
	require.Error(t, loginErr)
	typed := pkgerrors.As(loginErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestLogout(t *testing.T) {
	provider := &stubProvider{}
	svc, err := NewService(provider)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), LogoutRequest{AccessToken: "token"}))

	provider.signOut = idp.ErrNotAuthorized
	logoutErr := svc.Logout(context.Background(), LogoutRequest{AccessToken: "stale"})
	require.Error(t, logoutErr)
	typed := pkgerrors.As(logoutErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestLogoutRequiresToken(t *testing.T) {
	svc, err := NewService(&stubProvider{})
	require.NoError(t, err)

	logoutErr := svc.Logout(context.Background(), LogoutRequest{})
	require.Error(t, logoutErr)
	typed := pkgerrors.As(logoutErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
