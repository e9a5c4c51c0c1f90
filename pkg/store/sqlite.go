package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite persists credentials and the catalog snapshot in a local SQLite
// database. WAL mode keeps concurrent readers cheap; the single-writer
// limitation of SQLite is enforced through the connection pool size.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex

	saveCredStmt   *sql.Stmt
	deleteCredStmt *sql.Stmt
	loadCredsStmt  *sql.Stmt

	closeOnce sync.Once
}

func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS azure_keys (
		key TEXT PRIMARY KEY,
		ua_name TEXT,
		ua TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS models_cache (
		id INTEGER PRIMARY KEY,
		data TEXT,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) prepareStatements() error {
	var err error
	s.saveCredStmt, err = s.db.Prepare(`
		INSERT INTO azure_keys (key, ua_name, ua, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			ua_name = excluded.ua_name,
			ua = excluded.ua,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare save credential: %w", err)
	}
	s.deleteCredStmt, err = s.db.Prepare(`DELETE FROM azure_keys WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete credential: %w", err)
	}
	s.loadCredsStmt, err = s.db.Prepare(`SELECT key, ua_name, ua, created_at FROM azure_keys`)
	if err != nil {
		return fmt.Errorf("prepare load credentials: %w", err)
	}
	return nil
}

func (s *SQLite) LoadCredentials() ([]CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.loadCredsStmt.Query()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()
	var out []CredentialRecord
	for rows.Next() {
		var rec CredentialRecord
		var createdAt string
		if err := rows.Scan(&rec.Key, &rec.ProfileName, &rec.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			// Unparseable rows are skipped rather than failing startup.
			continue
		}
		rec.CreatedAt = ts
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveCredential(rec CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.saveCredStmt.Exec(rec.Key, rec.ProfileName, rec.UserAgent, rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteCredential(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.deleteCredStmt.Exec(key); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// SaveCatalog replaces the single persisted catalog row atomically.
func (s *SQLite) SaveCatalog(data []byte, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM models_cache`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear catalog: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO models_cache (data, created_at) VALUES (?, ?)`,
		string(data), fetchedAt.Format(time.RFC3339Nano)); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert catalog: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

func (s *SQLite) LoadCatalog() ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data, createdAt string
	err := s.db.QueryRow(`SELECT data, created_at FROM models_cache ORDER BY id DESC LIMIT 1`).Scan(&data, &createdAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load catalog: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parse catalog timestamp: %w", err)
	}
	return []byte(data), ts, nil
}

func (s *SQLite) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		if s.saveCredStmt != nil {
			s.saveCredStmt.Close()
		}
		if s.deleteCredStmt != nil {
			s.deleteCredStmt.Close()
		}
		if s.loadCredsStmt != nil {
			s.loadCredsStmt.Close()
		}
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})
	return closeErr
}
