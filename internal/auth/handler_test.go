package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"examportal/internal/app/apperr"
)

type mockCredentialService struct {
	registerFn func(ctx context.Context, in RegisterInput) (*User, error)
	loginFn    func(ctx context.Context, email, password string) (*Session, *User, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*Session, *User, error)
	revokeFn   func(ctx context.Context, refreshToken string) error
	fromTokFn  func(ctx context.Context, raw string) (*User, error)
}

func (m *mockCredentialService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if m.registerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.registerFn(ctx, in)
}

func (m *mockCredentialService) Login(ctx context.Context, email, password string) (*Session, *User, error) {
	if m.loginFn == nil {
		return nil, nil, errors.New("not implemented")
	}
	return m.loginFn(ctx, email, password)
}

func (m *mockCredentialService) Refresh(ctx context.Context, refreshToken string) (*Session, *User, error) {
	if m.refreshFn == nil {
		return nil, nil, errors.New("not implemented")
	}
	return m.refreshFn(ctx, refreshToken)
}

func (m *mockCredentialService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if m.revokeFn == nil {
		return errors.New("not implemented")
	}
	return m.revokeFn(ctx, refreshToken)
}

func (m *mockCredentialService) UserFromAccessToken(ctx context.Context, raw string) (*User, error) {
	if m.fromTokFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.fromTokFn(ctx, raw)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegisterResponseShape(t *testing.T) {
	svc := &mockCredentialService{
		registerFn: func(ctx context.Context, in RegisterInput) (*User, error) {
			if in.Email != "alice@example.test" {
				t.Fatalf("email = %q", in.Email)
			}
			return &User{
				ID:        uuid.New(),
				Email:     in.Email,
				FullName:  in.FullName,
				Role:      "student",
				CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email":     "alice@example.test",
		"password":  "s3cret",
		"full_name": "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var body struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Registration successful" {
		t.Fatalf("message = %q", body.Message)
	}
	if body.User.Role != "student" {
		t.Fatalf("role = %q, want student", body.User.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := &mockCredentialService{
		registerFn: func(ctx context.Context, in RegisterInput) (*User, error) {
			return nil, apperr.New(apperr.Conflict, "email is already registered")
		},
	}
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email":    "alice@example.test",
		"password": "s3cret",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["code"] != "conflict" {
		t.Fatalf("code = %q, want conflict", body["code"])
	}
}

func TestLoginSuccessAndFailure(t *testing.T) {
	svc := &mockCredentialService{
		loginFn: func(ctx context.Context, email, password string) (*Session, *User, error) {
			if password != "correct" {
				return nil, nil, apperr.New(apperr.Unauthorized, "invalid credentials")
			}
			return &Session{AccessToken: "tok", RefreshToken: "ref", ExpiresIn: 7200},
				&User{ID: uuid.New(), Email: email, Role: "student"}, nil
		},
	}
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{
		"email": "alice@example.test", "password": "correct",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Message string  `json:"message"`
		Session Session `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Login successful" || body.Session.AccessToken != "tok" {
		t.Fatalf("body = %+v", body)
	}

	rec = postJSON(t, h.Login, "/api/auth/login", map[string]string{
		"email": "alice@example.test", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuth(t *testing.T) {
	knownUser := &User{ID: uuid.New(), Email: "alice@example.test", Role: "student"}
	svc := &mockCredentialService{
		fromTokFn: func(ctx context.Context, raw string) (*User, error) {
			if raw != "valid-token" {
				return nil, apperr.New(apperr.Unauthorized, "invalid access token")
			}
			return knownUser, nil
		},
	}
	h := NewHandler(svc)

	var gotUser *User
	protected := h.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = CurrentUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer token", authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", authHeader: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", authHeader: "Bearer bad-token", wantStatus: http.StatusUnauthorized},
		{name: "valid token", authHeader: "Bearer valid-token", wantStatus: http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotUser = nil
			req := httptest.NewRequest(http.MethodGet, "/api/exams", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusNoContent && gotUser != knownUser {
				t.Fatal("authenticated user not injected into context")
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := RequireRoles("instructor", "admin")(next)

	tests := []struct {
		name       string
		user       *User
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "student blocked", user: &User{Role: "student"}, wantStatus: http.StatusForbidden},
		{name: "instructor allowed", user: &User{Role: "instructor"}, wantStatus: http.StatusNoContent},
		{name: "admin allowed", user: &User{Role: "admin"}, wantStatus: http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/exams/x/results", nil)
			if tc.user != nil {
				req = req.WithContext(ContextWithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	revoked := ""
	svc := &mockCredentialService{
		revokeFn: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}
	h := NewHandler(svc)

	rec := postJSON(t, h.Logout, "/api/auth/logout", map[string]string{"refresh_token": "ref-123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if revoked != "ref-123" {
		t.Fatalf("revoked = %q, want ref-123", revoked)
	}
}
