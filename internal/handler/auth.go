package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/health-companion/internal/auth"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/service"
	"github.com/sakif/health-companion/internal/validation"
)

// Authenticator is the slice of service.AuthService the handlers use.
type Authenticator interface {
	Register(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler serves account routes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account and log it in
//   - HandleLogin          → check credentials and issue a token
//   - HandleChangePassword → replace the caller's password
//   - HandleLogout         → clear the token cookie
//   - HandleMe             → return the caller's profile
//
// Request bodies never reach these handlers raw: middleware.Validate has
// already decoded, checked and sanitized them.
type AuthHandler struct {
	svc    Authenticator
	logger *slog.Logger
}

func NewAuthHandler(svc Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// AuthResponse is the body of a successful register or login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "password": "...", "name": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	v, ok := validatedValues(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Register(r.Context(), v.String("email"), v.String("password"), v.String("name"))
	if err != nil {
		h.logger.Info("register failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, res)
}

// HandleLogin issues a token for valid credentials.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	v, ok := validatedValues(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Login(r.Context(), v.String("email"), v.String("password"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithToken(w, http.StatusOK, res)
}

// HandleChangePassword replaces the caller's password.
//
// HTTP: POST /api/auth/password
// Auth: Required
// REQUEST BODY: {"currentPassword": "...", "newPassword": "..."}
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, ok := validatedValues(w, r)
	if !ok {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), userID, v.String("currentPassword"), v.String("newPassword")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /api/auth/logout
//
// Tokens are stateless: one already copied elsewhere stays valid until it
// expires. Bearer clients simply drop theirs.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// respondWithToken sends the token in the body for API clients and in an
// HttpOnly cookie for browsers.
func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
	})
}

// validatedValues fetches what middleware.Validate stored. A route wired
// without it is a programming error, reported as 500.
func validatedValues(w http.ResponseWriter, r *http.Request) (validation.Values, bool) {
	v, ok := validation.FromContext(r.Context())
	if !ok {
		slog.Error("route has no validation middleware", slog.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return nil, false
	}
	return v, true
}
