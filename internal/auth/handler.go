package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"examportal/internal/app/apiresp"
	"examportal/internal/app/apperr"
)

type contextKey string

const userContextKey contextKey = "auth_user"

const bearerPrefix = "Bearer "

type credentialService interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (*Session, *User, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, *User, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	UserFromAccessToken(ctx context.Context, raw string) (*User, error)
}

type Handler struct {
	svc credentialService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewHandler(svc credentialService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	user, err := h.svc.Register(r.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}

	apiresp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful",
		"user":    user,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	session, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}

	apiresp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"session": session,
		"user":    user,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteErrorKind(w, apperr.Validation, "invalid request body")
		return
	}

	session, user, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		apiresp.WriteError(w, err)
		return
	}

	apiresp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Token refreshed",
		"session": session,
		"user":    user,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.svc.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		apiresp.WriteError(w, err)
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// RequireAuth guards a route group behind a bearer token. The literal
// "Bearer " prefix is stripped; an empty remainder counts as absent.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
			return
		}

		user, err := h.svc.UserFromAccessToken(r.Context(), token)
		if err != nil {
			apiresp.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles restricts a route group already behind RequireAuth.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				apiresp.WriteErrorKind(w, apperr.Unauthorized, "Unauthorized")
				return
			}
			if _, exists := allowed[user.Role]; !exists {
				apiresp.WriteErrorKind(w, apperr.Forbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CurrentUser(ctx context.Context) (*User, bool) {
	v := ctx.Value(userContextKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok
}

// ContextWithUser injects an authenticated user into context.
// Useful for tests and internal handlers.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
