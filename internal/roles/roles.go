// Package roles is the account and permission collaborator: it answers
// "which role does this username hold" and handles login with a failed
// attempt lockout. The stock ledger itself performs no authorization; it
// trusts callers that passed through these checks.
package roles

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmaledger/m/domain"
)

// MaxFailedAttempts locks an account after this many consecutive bad
// passwords. Only a successful login resets the counter.
const MaxFailedAttempts = 5

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed attempts")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUserNotFound       = errors.New("user not found")
)

// Service looks up and authenticates pharmacy staff accounts.
type Service struct {
	db *sqlx.DB
}

// NewService constructs a Service.
func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Login verifies the username/password pair, enforcing the lockout.
func (s *Service) Login(username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)

	var user domain.User
	err := s.db.Get(&user, `SELECT id, username, password, role, failed_attempts FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("look up user: %w", err)
	}

	if user.FailedAttempts >= MaxFailedAttempts {
		return domain.User{}, ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		if _, err := s.db.Exec(`UPDATE users SET failed_attempts = failed_attempts + 1 WHERE id = $1`, user.ID); err != nil {
			return domain.User{}, fmt.Errorf("record failed attempt: %w", err)
		}
		return domain.User{}, ErrInvalidCredentials
	}

	if user.FailedAttempts > 0 {
		if _, err := s.db.Exec(`UPDATE users SET failed_attempts = 0 WHERE id = $1`, user.ID); err != nil {
			return domain.User{}, fmt.Errorf("reset failed attempts: %w", err)
		}
	}
	user.Password = ""
	user.FailedAttempts = 0
	return user, nil
}

// CreateAccount registers a new staff account under one of the known roles.
func (s *Service) CreateAccount(role, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if !domain.ValidRole(role) {
		return domain.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	var id int64
	err = s.db.QueryRowx(`INSERT INTO users (username, password, role) VALUES ($1, $2, $3) RETURNING id`,
		username, hashed, role).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create account: %w", err)
	}
	return domain.User{ID: id, Username: username, Role: role}, nil
}

// FindUserRole returns the role held by the given username.
func (s *Service) FindUserRole(username string) (string, error) {
	var role string
	err := s.db.Get(&role, `SELECT role FROM users WHERE username = $1`, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("look up role: %w", err)
	}
	return role, nil
}

// ResetPassword replaces the user's password and clears any lockout counter.
func (s *Service) ResetPassword(username, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.Exec(`UPDATE users SET password = $1, failed_attempts = 0 WHERE username = $2`,
		hashed, strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
