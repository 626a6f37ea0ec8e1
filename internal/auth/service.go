package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"examportal/internal/app/apperr"
)

const pgUniqueViolation = "23505"

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the token pair handed to clients on login and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

type ServiceConfig struct {
	BcryptCost      int
	RefreshTokenTTL time.Duration
}

type Service struct {
	db              *sql.DB
	tokens          *TokenIssuer
	bcryptCost      int
	refreshTokenTTL time.Duration
}

func NewService(db *sql.DB, tokens *TokenIssuer, cfg ServiceConfig) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	return &Service{
		db:              db,
		tokens:          tokens,
		bcryptCost:      cfg.BcryptCost,
		refreshTokenTTL: cfg.RefreshTokenTTL,
	}
}

func validRole(role string) bool {
	switch role {
	case "student", "instructor", "admin":
		return true
	}
	return false
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)
	if email == "" || in.Password == "" || fullName == "" {
		return nil, apperr.New(apperr.Validation, "email, password and full_name are required")
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = "student"
	}
	if !validRole(role) {
		return nil, apperr.New(apperr.Validation, "role must be student, instructor or admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "hash password")
	}

	user := &User{ID: uuid.New(), Email: email, FullName: fullName, Role: role}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Email, string(hash), user.FullName, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperr.New(apperr.Conflict, "email is already registered")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "insert profile")
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, apperr.New(apperr.Validation, "email and password are required")
	}

	user := &User{}
	var passwordHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, role, created_at
		FROM profiles
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &passwordHash, &user.FullName, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.New(apperr.Unauthorized, "invalid credentials")
		}
		return nil, nil, apperr.Wrap(apperr.Downstream, err, "load profile")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}

	session, err := s.issueSession(ctx, s.db, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair is issued, so a replayed token fails with Unauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, *User, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, nil, apperr.New(apperr.Validation, "refresh_token is required")
	}

	user := &User{}
	var expiresAt time.Time
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.email, p.full_name, p.role, p.created_at, rt.expires_at, rt.revoked_at
		FROM refresh_tokens rt
		JOIN profiles p ON p.id = rt.user_id
		WHERE rt.token = $1
	`, refreshToken).Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.CreatedAt, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.New(apperr.Unauthorized, "invalid refresh token")
		}
		return nil, nil, apperr.Wrap(apperr.Downstream, err, "load refresh token")
	}
	if revokedAt.Valid || time.Now().After(expiresAt) {
		return nil, nil, apperr.New(apperr.Unauthorized, "refresh token expired")
	}

	// Revoke and re-issue in one transaction so a failed issue does not
	// leave the client with a dead token and no replacement.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Downstream, err, "begin refresh tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, refreshToken)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Downstream, err, "revoke refresh token")
	}

	session, err := s.issueSession(ctx, tx, user)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, apperr.Wrap(apperr.Downstream, err, "commit refresh")
	}
	return session, user, nil
}

func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, refreshToken)
	if err != nil {
		return apperr.Wrap(apperr.Downstream, err, "revoke refresh token")
	}
	return nil
}

// UserFromAccessToken resolves a bearer token to the current profile. The
// profile is re-read so role changes take effect without re-login.
func (s *Service) UserFromAccessToken(ctx context.Context, raw string) (*User, error) {
	userID, _, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	user := &User{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, role, created_at
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.Unauthorized, "unknown user")
		}
		return nil, apperr.Wrap(apperr.Downstream, err, "load profile")
	}
	return user, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx; issueSession runs on
// whichever the caller is working in.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Service) issueSession(ctx context.Context, q execer, user *User) (*Session, error) {
	access, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, refresh, user.ID, time.Now().UTC().Add(s.refreshTokenTTL))
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, err, "store refresh token")
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
	}, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Wrap(apperr.Downstream, err, "generate refresh token")
	}
	return hex.EncodeToString(buf), nil
}
