package idp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
)

const (
	targetHeader    = "X-Amz-Target"
	initiateAuthOp  = "AWSCognitoIdentityProviderService.InitiateAuth"
	globalSignOutOp = "AWSCognitoIdentityProviderService.GlobalSignOut"
	wireContentType = "application/x-amz-json-1.1"
)

// Provider failure modes the auth service distinguishes. Anything else is a
// dependency failure.
var (
	ErrNotAuthorized = errors.New("identity provider rejected the credentials")
	ErrUserNotFound  = errors.New("identity provider does not know the user")
)

// TokenSet is the credential triple issued on a successful password login.
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// Client talks to the managed identity provider's API. The provider owns all
// user accounts and password handling; this process only proxies.
type Client struct {
	httpClient *http.Client
	endpoint   string
	cfg        config.IdPConfig
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.IdPConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("idp client id and secret are required")
	}
	if cfg.UserPoolID == "" {
		return nil, errors.New("idp user pool id is required")
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.ClientTimeout},
		endpoint:   cfg.Endpoint(),
		cfg:        cfg,
	}, nil
}

// SecretHash computes the per-username HMAC the provider requires alongside
// password logins: base64(HMAC-SHA256(secret, username+client_id)).
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Login runs the provider's password flow and returns the issued token set.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenSet, error) {
	payload := map[string]any{
		"ClientId": c.cfg.ClientID,
		"AuthFlow": "USER_PASSWORD_AUTH",
		"AuthParameters": map[string]string{
			"USERNAME":    email,
			"PASSWORD":    password,
			"SECRET_HASH": SecretHash(email, c.cfg.ClientID, c.cfg.ClientSecret),
		},
	}

	var result struct {
		AuthenticationResult struct {
			IdToken      string `json:"IdToken"`
			AccessToken  string `json:"AccessToken"`
			RefreshToken string `json:"RefreshToken"`
			TokenType    string `json:"TokenType"`
			ExpiresIn    int64  `json:"ExpiresIn"`
		} `json:"AuthenticationResult"`
	}
	if err := c.call(ctx, initiateAuthOp, payload, &result); err != nil {
		return nil, err
	}
	if result.AuthenticationResult.AccessToken == "" {
		return nil, fmt.Errorf("provider returned no authentication result")
	}

	return &TokenSet{
		IDToken:      result.AuthenticationResult.IdToken,
		AccessToken:  result.AuthenticationResult.AccessToken,
		RefreshToken: result.AuthenticationResult.RefreshToken,
		TokenType:    result.AuthenticationResult.TokenType,
		ExpiresIn:    result.AuthenticationResult.ExpiresIn,
	}, nil
}

// SignOut revokes every session tied to the access token upstream.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	payload := map[string]any{"AccessToken": accessToken}
	return c.call(ctx, globalSignOutOp, payload, &struct{}{})
}

func (c *Client) call(ctx context.Context, operation string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", wireContentType)
	req.Header.Set(targetHeader, operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling identity provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeProviderError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	return nil
}

func decodeProviderError(status int, raw []byte) error {
	var body struct {
		Type    string `json:"__type"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	kind := body.Type
	if idx := strings.LastIndex(kind, "#"); idx >= 0 {
		kind = kind[idx+1:]
	}

	switch kind {
	case "NotAuthorizedException":
		return ErrNotAuthorized
	case "UserNotFoundException":
		return ErrUserNotFound
	}
	if body.Message != "" {
		return fmt.Errorf("identity provider error %s (%d): %s", kind, status, body.Message)
	}
	return fmt.Errorf("identity provider returned status %d", status)
}
