package controllers

import (
	"net/http"

	"github.com/dromeroc/tiendapos-backend/api/middleware"
	"github.com/dromeroc/tiendapos-backend/api/responses"
	"github.com/dromeroc/tiendapos-backend/api/validators"
	authsvc "github.com/dromeroc/tiendapos-backend/internal/auth"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
)

// Login exchanges credentials for a token pair.
func Login(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.LoginInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ip, userAgent := clientMeta(r)
		pair, err := svc.Login(r.Context(), authsvc.RequestMeta{IPAddress: ip, UserAgent: userAgent}, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pair)
	}
}

// Refresh rotates a refresh token and mints a new access token.
func Refresh(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.RefreshInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ip, userAgent := clientMeta(r)
		pair, err := svc.Refresh(r.Context(), authsvc.RequestMeta{IPAddress: ip, UserAgent: userAgent}, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pair)
	}
}

// Logout revokes the session behind the presented access token.
func Logout(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session context missing"))
			return
		}

		ip, userAgent := clientMeta(r)
		if err := svc.Logout(r.Context(), authsvc.RequestMeta{IPAddress: ip, UserAgent: userAgent}, claims); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
