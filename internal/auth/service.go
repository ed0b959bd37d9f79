package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deepshield/internal/logging"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

// UserStore is the persistence the account service needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, firstName, lastName, passwordHash string) (*store.User, error)
	UserByUsername(ctx context.Context, username string) (*store.User, error)
	UserByID(ctx context.Context, id string) (*store.User, error)
}

// SignupRequest carries the signup form fields.
type SignupRequest struct {
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Session is the result of a successful signup or signin.
type Session struct {
	Token string
	User  *store.User
}

// Service implements signup and signin.
type Service struct {
	users  UserStore
	tokens *Tokens
	logger *slog.Logger
}

// NewService builds an account service.
func NewService(users UserStore, tokens *Tokens, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logging.NewComponentLogger(logger, "auth")}
}

// Tokens returns the issuer used to sign session tokens.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Signup creates an account and returns a session for it.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, err
	}
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return nil, services.Wrap(services.ErrValidation, "auth", "signup", "First and last name are required", nil)
	}
	if len(req.Password) < MinPasswordLength {
		return nil, services.Wrap(services.ErrValidation, "auth", "signup", "Password must be at least 6 characters", nil)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signup", "hash password", err)
	}
	user, err := s.users.CreateUser(ctx, username, first, last, hash)
	if errors.Is(err, store.ErrUsernameTaken) {
		return nil, services.Wrap(services.ErrConflict, "auth", "signup", "Email already taken", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signup", "create user", err)
	}
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signup", "issue token", err)
	}
	s.logger.InfoContext(ctx, "user signed up",
		logging.String(logging.FieldEventType, "user_signup"),
		logging.String(logging.FieldUserID, user.ID),
	)
	return &Session{Token: token, User: user}, nil
}

// Signin verifies credentials and returns a session.
func (s *Service) Signin(ctx context.Context, username, password string) (*Session, error) {
	normalized, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, services.Wrap(services.ErrValidation, "auth", "signin", "Password is required", nil)
	}
	user, err := s.users.UserByUsername(ctx, normalized)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signin", "lookup user", err)
	}
	if user == nil {
		return nil, services.Wrap(services.ErrUnauthorized, "auth", "signin", "Error while logging in", nil)
	}
	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signin", "verify password", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrUnauthorized, "auth", "signin", "Error while logging in", nil)
	}
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "signin", "issue token", err)
	}
	return &Session{Token: token, User: user}, nil
}

// Authenticate validates a bearer token and returns the account it names.
func (s *Service) Authenticate(ctx context.Context, raw string) (*store.User, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrUnauthorized, "auth", "verify", "Invalid token", err)
	}
	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "auth", "verify", "lookup user", err)
	}
	if user == nil {
		return nil, services.Wrap(services.ErrUnauthorized, "auth", "verify", "User no longer exists", nil)
	}
	return user, nil
}

// DisplayName renders first and last name in title case, falling back when both are blank.
func DisplayName(first, last, fallback string) string {
	full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if full == "" {
		return fallback
	}
	return cases.Title(language.Und).String(strings.ToLower(full))
}

func normalizeUsername(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", services.Wrap(services.ErrValidation, "auth", "username", "Username must be a valid email", err)
	}
	return trimmed, nil
}
