// Package httpapi exposes the identity flows over HTTP/JSON. Handlers stay
// thin: decode, call the service, map the sentinel error to a status code.
// Refresh tokens travel in an HTTP-only cookie; access tokens in the
// Authorization header.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mikhailbahdashych/identity-core/internal/common"
	"github.com/mikhailbahdashych/identity-core/internal/logging"
	"github.com/mikhailbahdashych/identity-core/internal/server/services"
	"github.com/mikhailbahdashych/identity-core/internal/server/tokens"
)

const refreshCookieName = "refreshToken"

type Handler struct {
	logger        logging.Logger
	identity      *services.IdentityService
	tokens        *tokens.Service
	refreshTTL    time.Duration
	secureCookies bool
}

func NewHandler(logger logging.Logger, identity *services.IdentityService,
	ts *tokens.Service, refreshTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{
		logger:        logger,
		identity:      identity,
		tokens:        ts,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
	}
}

// Router assembles all routes with logging and panic recovery applied.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware(h.logger))
	r.Use(loggingMiddleware(h.logger))

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/sign-in", h.signIn).Methods(http.MethodPost)
	r.HandleFunc("/sign-up", h.signUp).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", h.refresh).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/get-user-by-personal-id/{personalId}", h.userByPersonalID).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(h.authMiddleware)
	authed.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	authed.HandleFunc("/change-password", h.changePassword).Methods(http.MethodPost)
	authed.HandleFunc("/change-email", h.changeEmail).Methods(http.MethodPost)
	authed.HandleFunc("/delete-account", h.deleteAccount).Methods(http.MethodDelete)
	authed.HandleFunc("/generate-2fa-secret", h.generateTwoFaSecret).Methods(http.MethodGet)
	authed.HandleFunc("/set-2fa", h.setTwoFa).Methods(http.MethodPost)
	authed.HandleFunc("/disable-2fa", h.disableTwoFa).Methods(http.MethodPost)
	authed.HandleFunc("/get-user-by-token", h.userByToken).Methods(http.MethodGet)
	authed.HandleFunc("/get-user-settings", h.userSettings).Methods(http.MethodGet)
	authed.HandleFunc("/update-user-personal-information", h.updatePersonalInformation).Methods(http.MethodPatch)
	authed.HandleFunc("/update-user-security-settings", h.updateSecuritySettings).Methods(http.MethodPatch)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.identity.SignIn(r.Context(), req.Email, req.Password, req.TwoFaCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if result.TwoFactorRequired {
		h.sendJSON(w, signInResponse{TwoFa: true}, http.StatusOK)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	h.sendJSON(w, signInResponse{
		AccessToken: result.AccessToken,
		Reopened:    result.Reopened,
	}, http.StatusOK)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.identity.SignUp(r.Context(), req.Email, req.Password, req.Username); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, messageResponse{Message: "account created"}, http.StatusCreated)
}

// refresh accepts the refresh token from the HTTP-only cookie, falling back
// to the request body for non-browser clients.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		h.sendError(w, "missing refresh token", http.StatusUnauthorized)
		return
	}

	pair, err := h.identity.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.sendJSON(w, refreshResponse{AccessToken: pair.AccessToken}, http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if err := h.identity.Logout(r.Context(), claims.UserID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	h.sendJSON(w, messageResponse{Message: "logged out"}, http.StatusOK)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	applied, err := h.identity.ChangePassword(r.Context(), claims.UserID,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword, req.TwoFaCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	message := "password changed"
	if !applied {
		message = "password was changed recently, try again later"
	}
	h.sendJSON(w, outcomeResponse{Applied: applied, Message: message}, http.StatusOK)
}

func (h *Handler) changeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	applied, err := h.identity.ChangeEmail(r.Context(), claims.UserID, req.NewEmail, req.TwoFaCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	message := "email changed"
	if !applied {
		message = "email can only be changed once"
	}
	h.sendJSON(w, outcomeResponse{Applied: applied, Message: message}, http.StatusOK)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.identity.DeleteAccount(r.Context(), claims.UserID, req.Password, req.TwoFaCode); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	h.sendJSON(w, messageResponse{Message: "account closed"}, http.StatusOK)
}

func (h *Handler) generateTwoFaSecret(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	secret, err := h.identity.GenerateTwoFactorSecret(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, twoFaSecretResponse{Secret: secret}, http.StatusOK)
}

func (h *Handler) setTwoFa(w http.ResponseWriter, r *http.Request) {
	var req setTwoFaRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.identity.EnrollTwoFactor(r.Context(), claims.UserID, req.Secret, req.Code); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, messageResponse{Message: "two-factor enabled"}, http.StatusOK)
}

func (h *Handler) disableTwoFa(w http.ResponseWriter, r *http.Request) {
	var req disableTwoFaRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.identity.DisableTwoFactor(r.Context(), claims.UserID, req.Code); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, messageResponse{Message: "two-factor disabled"}, http.StatusOK)
}

func (h *Handler) userByToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, err := h.identity.UserByToken(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, newUserResponse(user), http.StatusOK)
}

func (h *Handler) userByPersonalID(w http.ResponseWriter, r *http.Request) {
	personalID := mux.Vars(r)["personalId"]
	profile, err := h.identity.PublicProfile(r.Context(), personalID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, newPublicProfileResponse(profile), http.StatusOK)
}

func (h *Handler) userSettings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	settings, err := h.identity.SecuritySettings(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, securitySettingsResponse{
		TwoFaEnabled:      settings.TwoFaEnabled,
		ChangedEmail:      settings.ChangedEmail,
		ChangedPasswordAt: settings.ChangedPasswordAt,
		Phone:             settings.Phone,
		Notify:            settings.Notify,
	}, http.StatusOK)
}

func (h *Handler) updatePersonalInformation(w http.ResponseWriter, r *http.Request) {
	var req updatePersonalInformationRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.identity.UpdatePersonalInformation(r.Context(), claims.UserID, req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, messageResponse{Message: "profile updated"}, http.StatusOK)
}

func (h *Handler) updateSecuritySettings(w http.ResponseWriter, r *http.Request) {
	var req updateSecuritySettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.identity.UpdateSecuritySettings(r.Context(), claims.UserID, req.Phone, req.Notify); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.sendJSON(w, messageResponse{Message: "settings updated"}, http.StatusOK)
}

// --- helpers ---

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) sendJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error(context.Background(), "error encoding response", "error", err)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, message string, status int) {
	h.sendJSON(w, errorResponse{Error: message}, status)
}

// writeServiceError maps sentinel errors to HTTP statuses. Conflict reasons
// keep distinct messages so clients can tell which dimension collided.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorBadRequest):
		h.sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorInvalidToken):
		h.sendError(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, common.ErrorAccessForbidden):
		h.sendError(w, "access forbidden", http.StatusForbidden)
	case errors.Is(err, common.ErrorNotFound):
		h.sendError(w, "not found", http.StatusNotFound)
	case errors.Is(err, common.ErrorEmailTaken):
		h.sendError(w, "email already taken", http.StatusConflict)
	case errors.Is(err, common.ErrorUsernameTaken):
		h.sendError(w, "username already taken", http.StatusConflict)
	case errors.Is(err, common.ErrorPasswordUnchanged):
		h.sendError(w, "new password matches the current one", http.StatusConflict)
	case errors.Is(err, common.ErrorRateLimited):
		h.sendError(w, "too many attempts, try again later", http.StatusTooManyRequests)
	default:
		h.logger.Error(r.Context(), "unexpected service error", "error", err, "path", r.URL.Path)
		h.sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
