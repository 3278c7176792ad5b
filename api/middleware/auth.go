package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/vouchers-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/idp"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
)

// TokenVerifier is the identity check surface the auth gate depends on.
type TokenVerifier interface {
	VerifyAdmin(ctx context.Context, token string) (*idp.Principal, error)
}

// Auth validates a bearer token against the identity provider's key set and
// requires the admin group. A bad token is 401; a good token without the
// group is 403.
func Auth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			principal, err := verifier.VerifyAdmin(r.Context(), token)
			if err != nil {
				if errors.Is(err, idp.ErrNotInGroup) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithPrincipal(r.Context(), principal.Username)
			ctx = WithGroups(ctx, principal.Groups)

			if logg != nil {
				ctx = logg.WithPrincipal(ctx, principal.Username)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
