package idp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
)

type signingKey struct {
	kid string
	key *rsa.PrivateKey
}

func newSigningKey(t *testing.T, kid string) signingKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, key: key}
}

func (s signingKey) jwk() map[string]string {
	pub := s.key.Public().(*rsa.PublicKey)
	return map[string]string{
		"kid": s.kid,
		"kty": "RSA",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func jwksServer(t *testing.T, fetches *int, keys ...signingKey) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches != nil {
			*fetches++
		}
		doc := map[string]any{"keys": []map[string]string{}}
		for _, key := range keys {
			doc["keys"] = append(doc["keys"].([]map[string]string), key.jwk())
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func verifierConfig() config.IdPConfig {
	return config.IdPConfig{
		Region:     "us-east-1",
		ClientID:   "client-id",
		UserPoolID: "us-east-1_pool",
		AdminGroup: "admin",
	}
}

func signToken(t *testing.T, key signingKey, claims Principal) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	token.Header["kid"] = key.kid
	signed, err := token.SignedString(key.key)
	require.NoError(t, err)
	return signed
}

func adminClaims(cfg config.IdPConfig) Principal {
	return Principal{
		Username: "admin@example.com",
		ClientID: cfg.ClientID,
		Groups:   []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyAdminAcceptsValidToken(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	principal, err := verifier.VerifyAdmin(context.Background(), signToken(t, key, adminClaims(cfg)))
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", principal.Username)
	assert.True(t, principal.InGroup("admin"))
}

func TestVerifyAdminRejectsMissingGroup(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	claims := adminClaims(cfg)
	claims.Groups = []string{"customers"}

	_, err = verifier.VerifyAdmin(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrNotInGroup)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	claims := adminClaims(cfg)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err = verifier.Verify(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	claims := adminClaims(cfg)
	claims.Issuer = "https://evil.example.com/pool"

	_, err = verifier.Verify(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsClientIDMismatch(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	claims := adminClaims(cfg)
	claims.ClientID = "some-other-app"

	_, err = verifier.Verify(context.Background(), signToken(t, key, claims))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsTokenSignedByForeignKey(t *testing.T) {
	published := newSigningKey(t, "kid-1")
	forged := newSigningKey(t, "kid-1")
	srv := jwksServer(t, nil, published)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)
	cfg := verifierConfig()
	verifier, err := NewVerifier(keySet, cfg)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signToken(t, forged, adminClaims(cfg)))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestKeySetCachesWithinTTL(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	fetches := 0
	srv := jwksServer(t, &fetches, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := keySet.Key(context.Background(), "kid-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetches)
}

func TestKeySetRefetchesOnUnknownKid(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	fetches := 0
	srv := jwksServer(t, &fetches, key)

	keySet, err := NewKeySet(srv.URL, time.Minute)
	require.NoError(t, err)

	_, err = keySet.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	_, err = keySet.Key(context.Background(), "kid-rotated-away")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, 2, fetches, "unknown kid forces a refetch before failing")
}
