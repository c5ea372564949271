package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store wraps the SQLite handle holding user accounts and profile data.
// Live presence never touches this database; it only backs authentication
// and the profile snapshots attached to presence records.
type Store struct {
	db *sql.DB
}

// User represents a row in the users table.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash []byte
	Headline     *string
	Pronouns     *string
	Avatar       json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrEmailTaken is returned when registering with an email that exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrUsernameTaken is returned when registering with a username that exists.
var ErrUsernameTaken = errors.New("username already taken")

// NewStore initializes the SQLite database at the provided path. Call Close
// when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "nearcast.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash BLOB NOT NULL,
			headline TEXT,
			pronouns TEXT,
			avatar_data TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateUser inserts a new account. ErrEmailTaken or ErrUsernameTaken is
// returned on conflicts.
func (s *Store) CreateUser(ctx context.Context, email, username string, passwordHash []byte, headline *string, avatar json.RawMessage) (int64, error) {
	if len(avatar) == 0 {
		avatar = json.RawMessage(`{}`)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users(email, username, password_hash, headline, avatar_data) VALUES(?, ?, ?, ?, ?)`,
		email, username, passwordHash, headline, string(avatar))
	if err != nil {
		if isConstraintError(err) {
			if exists, lookupErr := s.emailExists(ctx, email); lookupErr == nil && exists {
				return 0, ErrEmailTaken
			}
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) emailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&count)
	return count > 0, err
}

// GetUserByEmail returns the user for email, or nil when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT id, email, username, password_hash, headline, pronouns, avatar_data, created_at, updated_at FROM users WHERE email = ?`, email)
}

// GetUserByID returns the user for id, or nil when absent.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, `SELECT id, email, username, password_hash, headline, pronouns, avatar_data, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var (
		user   User
		avatar string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.Headline, &user.Pronouns, &avatar, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Avatar = json.RawMessage(avatar)
	return &user, nil
}

// UpdateHeadline sets the profile headline; nil clears it.
func (s *Store) UpdateHeadline(ctx context.Context, userID int64, headline *string) error {
	return s.updateField(ctx, `UPDATE users SET headline = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, headline, userID)
}

// UpdatePronouns sets the profile pronouns; nil clears them.
func (s *Store) UpdatePronouns(ctx context.Context, userID int64, pronouns *string) error {
	return s.updateField(ctx, `UPDATE users SET pronouns = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, pronouns, userID)
}

// UpdateAvatar replaces the stored avatar descriptor.
func (s *Store) UpdateAvatar(ctx context.Context, userID int64, avatar json.RawMessage) error {
	if len(avatar) == 0 {
		avatar = json.RawMessage(`{}`)
	}
	return s.updateField(ctx, `UPDATE users SET avatar_data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(avatar), userID)
}

func (s *Store) updateField(ctx context.Context, query string, value any, userID int64) error {
	result, err := s.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqliteConstraintCode || code%256 == sqliteConstraintCode
	}
	return false
}
