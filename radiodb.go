package genairadio

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when a user or podcast does not exist
	ErrNotFound = errors.New("not found")
	// ErrWrongPassword is returned when a known user gives the wrong password
	ErrWrongPassword = errors.New("wrong password")
)

const bcryptCost = 12

// DB represents a GenAI Radio database connection
type DB struct {
	db *sql.DB
}

// User is a listener account
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// OpenDB opens a new database connection
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS podcasts (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			topics TEXT NOT NULL,
			filename TEXT NOT NULL,
			narration TEXT NOT NULL,
			FOREIGN KEY (username) REFERENCES users(username)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_podcasts_username ON podcasts(username, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// CreateUser stores a new account with a bcrypt hash of password
func (db *DB) CreateUser(username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{Username: username, PasswordHash: string(hash), CreatedAt: time.Now()}
	res, err := db.db.Exec(
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID, _ = res.LastInsertId()
	return user, nil
}

// GetUser retrieves an account by username
func (db *DB) GetUser(username string) (*User, error) {
	var user User
	err := db.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Authenticate logs a listener in, signing them up on first use. A known
// username must match its stored password.
func (db *DB) Authenticate(username, password string) (*User, bool, error) {
	user, err := db.GetUser(username)
	if errors.Is(err, ErrNotFound) {
		created, err := db.CreateUser(username, password)
		if err != nil {
			return nil, false, err
		}
		return created, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, false, ErrWrongPassword
	}
	return user, false, nil
}

// CreatePodcast stores a generated episode
func (db *DB) CreatePodcast(p *Podcast) error {
	_, err := db.db.Exec(
		"INSERT INTO podcasts (id, username, created_at, topics, filename, narration) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Username, p.CreatedAt, strings.Join(p.Topics, ", "), p.Filename, p.Narration,
	)
	if err != nil {
		return fmt.Errorf("failed to create podcast: %w", err)
	}
	return nil
}

// GetPodcast retrieves an episode by ID
func (db *DB) GetPodcast(id string) (*Podcast, error) {
	row := db.db.QueryRow(
		"SELECT id, username, created_at, topics, filename, narration FROM podcasts WHERE id = ?",
		id,
	)
	p, err := scanPodcast(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("podcast %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get podcast: %w", err)
	}
	return p, nil
}

// ListPodcasts retrieves a listener's episodes, newest first, optionally limited by count
func (db *DB) ListPodcasts(username string, limit int) ([]Podcast, error) {
	query := "SELECT id, username, created_at, topics, filename, narration FROM podcasts WHERE username = ? ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.db.Query(query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}
	defer rows.Close()

	var podcasts []Podcast
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan podcast: %w", err)
		}
		podcasts = append(podcasts, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating podcasts: %w", err)
	}

	return podcasts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPodcast(row rowScanner) (*Podcast, error) {
	var p Podcast
	var topics string
	if err := row.Scan(&p.ID, &p.Username, &p.CreatedAt, &topics, &p.Filename, &p.Narration); err != nil {
		return nil, err
	}
	p.Topics = splitTopics(topics)
	return &p, nil
}

func splitTopics(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
