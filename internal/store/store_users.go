package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userColumns = "id, username, first_name, last_name, password_hash, created_at"

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		user       User
		createdRaw string
	)
	if err := scanner.Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.PasswordHash, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTime(createdRaw); err == nil {
		user.CreatedAt = created
	}
	return &user, nil
}

// CreateUser inserts a new account. Usernames compare case-insensitively.
func (s *Store) CreateUser(ctx context.Context, username, firstName, lastName, passwordHash string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, errors.New("username is required")
	}
	if passwordHash == "" {
		return nil, errors.New("password hash is required")
	}
	created := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: passwordHash,
		CreatedAt:    created,
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.FirstName, user.LastName, user.PasswordHash, formatTime(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UserByUsername fetches an account by username. Returns nil when absent.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+userColumns+` FROM users WHERE username = ?`,
		strings.ToLower(strings.TrimSpace(username)),
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// UserByID fetches an account by identifier. Returns nil when absent.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
