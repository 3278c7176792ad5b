package controllers

import (
	"net/http"

	"github.com/angelmondragon/vouchers-backend/api/responses"
	"github.com/angelmondragon/vouchers-backend/api/validators"
	"github.com/angelmondragon/vouchers-backend/internal/auth"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	idTokenCookie      = "id_token"
)

// AuthLogin wires the login endpoint into the HTTP layer. When cookie mode is
// enabled the issued tokens are also mirrored into short-lived cookies.
func AuthLogin(svc auth.Service, cookies config.AuthCookiesConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if cookies.Enabled {
			maxAge := int(result.ExpiresIn)
			setTokenCookie(w, cookies, accessTokenCookie, result.AccessToken, maxAge)
			setTokenCookie(w, cookies, refreshTokenCookie, result.RefreshToken, maxAge)
			setTokenCookie(w, cookies, idTokenCookie, result.IDToken, maxAge)
		}

		responses.WriteSuccess(w, result)
	}
}

// AuthLogout revokes the caller's provider sessions and clears any token
// cookies a prior cookie-mode login may have set.
func AuthLogout(svc auth.Service, cookies config.AuthCookiesConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LogoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Logout(r.Context(), body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if cookies.Enabled {
			setTokenCookie(w, cookies, accessTokenCookie, "", -1)
			setTokenCookie(w, cookies, refreshTokenCookie, "", -1)
			setTokenCookie(w, cookies, idTokenCookie, "", -1)
		}

		responses.WriteSuccess(w, map[string]string{"status": "signed_out"})
	}
}

func setTokenCookie(w http.ResponseWriter, cookies config.AuthCookiesConfig, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
