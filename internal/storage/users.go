package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	RoleAdmin  = "admin"  // may create and revoke waivers
	RoleViewer = "viewer" // read-only access to run history
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found or expired")
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry is one row of the API audit trail.
type AuditEntry struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"ts"`
	Username string         `json:"username,omitempty"`
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// CreateUser stores a user with an already hashed password.
func (db *DB) CreateUser(username, passHash, role string) (int64, error) {
	if role != RoleAdmin && role != RoleViewer {
		return 0, fmt.Errorf("role %q: want %s or %s", role, RoleAdmin, RoleViewer)
	}
	res, err := db.conn.Exec(`INSERT INTO users(username, pass_hash, role, created_at) VALUES(?,?,?,?)`,
		username, passHash, role, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", username, err)
	}
	return res.LastInsertId()
}

// GetUserByUsername returns the user and its password hash.
func (db *DB) GetUserByUsername(username string) (User, string, error) {
	row := db.conn.QueryRow(`SELECT id, username, role, created_at, pass_hash FROM users WHERE username=?`, username)
	var (
		u       User
		hash    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &created, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return User{}, "", err
	}
	u.CreatedAt = parseTime(created)
	return u, hash, nil
}

func (db *DB) CreateSession(userID int64, token string, expires time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO sessions(token, user_id, expires_at, created_at) VALUES(?,?,?,?)`,
		token, userID, expires.UTC().Format(timeLayout), time.Now().UTC().Format(timeLayout))
	return err
}

// GetSession resolves an unexpired session token to its user.
func (db *DB) GetSession(token string) (User, error) {
	row := db.conn.QueryRow(`
SELECT u.id, u.username, u.role, u.created_at
FROM sessions s JOIN users u ON s.user_id=u.id
WHERE s.token=? AND s.expires_at > ?`, token, time.Now().UTC().Format(timeLayout))
	var (
		u       User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrSessionNotFound
		}
		return User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (db *DB) DeleteSession(token string) error {
	res, err := db.conn.Exec(`DELETE FROM sessions WHERE token=?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (db *DB) LogAudit(username, action, resource string, meta map[string]any) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`INSERT INTO audit(ts, username, action, resource, meta_json) VALUES(?,?,?,?,?)`,
		time.Now().UTC().Format(timeLayout), nz(username), action, nz(resource), string(b))
	return err
}

// ListAudit returns the newest audit entries first.
func (db *DB) ListAudit(limit int) ([]AuditEntry, error) {
	rows, err := db.conn.Query(`
SELECT id, ts, COALESCE(username,''), action, COALESCE(resource,''), COALESCE(meta_json,'')
FROM audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e      AuditEntry
			ts, mj string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Username, &e.Action, &e.Resource, &mj); err != nil {
			return nil, err
		}
		e.At = parseTime(ts)
		if mj != "" && mj != "null" {
			_ = json.Unmarshal([]byte(mj), &e.Meta)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
