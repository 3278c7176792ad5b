package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.IdPConfig{
		Region:       "us-east-1",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		UserPoolID:   "us-east-1_pool",
		EndpointURL:  srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestSecretHashIsDeterministic(t *testing.T) {
	first := SecretHash("admin@example.com", "client-id", "client-secret")
	second := SecretHash("admin@example.com", "client-id", "client-secret")
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, SecretHash("other@example.com", "client-id", "client-secret"))
}

func TestClientLoginReturnsTokenSet(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, initiateAuthOp, r.Header.Get(targetHeader))

		var payload struct {
			AuthFlow       string            `json:"AuthFlow"`
			AuthParameters map[string]string `json:"AuthParameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "USER_PASSWORD_AUTH", payload.AuthFlow)
		assert.Equal(t, "admin@example.com", payload.AuthParameters["USERNAME"])
		assert.NotEmpty(t, payload.AuthParameters["SECRET_HASH"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"AuthenticationResult": map[string]any{
				"IdToken":      "id-token",
				"AccessToken":  "access-token",
				"RefreshToken": "refresh-token",
				"TokenType":    "Bearer",
				"ExpiresIn":    3600,
			},
		})
	})

	tokens, err := client.Login(context.Background(), "admin@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "access-token", tokens.AccessToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.EqualValues(t, 3600, tokens.ExpiresIn)
}

func TestClientLoginMapsNotAuthorized(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"__type":  "com.amazonaws#NotAuthorizedException",
			"message": "Incorrect username or password.",
		})
	})

	_, err := client.Login(context.Background(), "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestClientLoginMapsUserNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"__type": "UserNotFoundException"})
	})

	_, err := client.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClientLoginUnknownErrorIsOpaque(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"__type":  "InternalErrorException",
			"message": "upstream exploded",
		})
	})

	_, err := client.Login(context.Background(), "admin@example.com", "correct-horse")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthorized)
	assert.Contains(t, err.Error(), "InternalErrorException")
}

func TestClientSignOut(t *testing.T) {
	var gotToken string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, globalSignOutOp, r.Header.Get(targetHeader))
		var payload struct {
			AccessToken string `json:"AccessToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotToken = payload.AccessToken
		_, _ = w.Write([]byte("{}"))
	})

	require.NoError(t, client.SignOut(context.Background(), "access-token"))
	assert.Equal(t, "access-token", gotToken)
}
