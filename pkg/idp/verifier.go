package idp

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSigningMethod = jwt.SigningMethodRS256

// Verification failure modes. Middleware maps ErrTokenInvalid to 401 and
// ErrNotInGroup to 403.
var (
	ErrTokenInvalid = errors.New("invalid or expired token")
	ErrNotInGroup   = errors.New("principal lacks the required group")
)

// Principal is the identity carried by a verified access token.
type Principal struct {
	Username string   `json:"username"`
	ClientID string   `json:"client_id"`
	Groups   []string `json:"cognito:groups"`
	jwt.RegisteredClaims
}

// InGroup reports whether the principal carries the named group claim.
func (p *Principal) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Verifier checks bearer credentials against the provider's key set and the
// configured issuer and client id.
type Verifier struct {
	keys *KeySet
	cfg  config.IdPConfig
}

// NewVerifier wires a verifier to a key set cache.
func NewVerifier(keys *KeySet, cfg config.IdPConfig) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("key set is required")
	}
	return &Verifier{keys: keys, cfg: cfg}, nil
}

// Verify validates signature, issuer, expiry, and client id, returning the
// token's principal. It does not check group membership; callers gate on the
// group they need.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	principal := &Principal{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		principal,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			kid, _ := token.Header["kid"].(string)
			return v.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if principal.ClientID != v.cfg.ClientID {
		return nil, fmt.Errorf("%w: client id mismatch", ErrTokenInvalid)
	}

	return principal, nil
}

// VerifyAdmin verifies the token and additionally requires the configured
// admin group. Every lifecycle route goes through this check.
func (v *Verifier) VerifyAdmin(ctx context.Context, tokenString string) (*Principal, error) {
	principal, err := v.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if !principal.InGroup(v.cfg.AdminGroup) {
		return nil, ErrNotInGroup
	}
	return principal, nil
}
