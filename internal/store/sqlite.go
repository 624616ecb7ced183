package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/ashureev/sparkweek/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS blobs (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value_json TEXT NOT NULL,
		status TEXT,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_blobs_expiry ON blobs(expires_at) WHERE key = 'weekly_package' AND status = 'active';
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadProfile returns the stored profile for a user.
func (s *SQLiteStore) LoadProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	ok, err := s.load(ctx, userID, KeyProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SaveProfile replaces the stored profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, userID string, p *domain.UserProfile) error {
	return s.save(ctx, userID, KeyProfile, p, nil, nil)
}

// LoadPackage returns the stored package for a user.
func (s *SQLiteStore) LoadPackage(ctx context.Context, userID string) (*domain.WeeklyPackage, error) {
	var p domain.WeeklyPackage
	ok, err := s.load(ctx, userID, KeyPackage, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SavePackage replaces the stored package.
func (s *SQLiteStore) SavePackage(ctx context.Context, userID string, p *domain.WeeklyPackage) error {
	return s.save(ctx, userID, KeyPackage, p, string(p.Status), p.EndDate.UnixNano())
}

// Clear removes both blobs for a user.
func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	return shared.RetryOnConflict(ctx, s.retry, "clear", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE user_id = ? AND key IN (?, ?)`,
			userID, KeyProfile, KeyPackage)
		if err != nil {
			return fmt.Errorf("clear blobs: %w", err)
		}
		return nil
	})
}

// ExpirePackages marks past-due active packages as expired.
func (s *SQLiteStore) ExpirePackages(ctx context.Context, now time.Time) (int64, error) {
	var expired int64
	err := shared.RetryOnConflict(ctx, s.retry, "expire packages", func() error {
		n, err := s.expireOnce(ctx, now)
		expired = n
		return err
	})
	return expired, err
}

func (s *SQLiteStore) expireOnce(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin expiry: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("Failed to rollback expiry", "error", rbErr)
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, value_json FROM blobs
		WHERE key = ? AND status = ? AND expires_at <= ?`,
		KeyPackage, string(domain.PackageActive), now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("query due packages: %w", err)
	}

	type due struct {
		userID string
		pkg    domain.WeeklyPackage
	}
	var pending []due
	for rows.Next() {
		var d due
		var value string
		if err := rows.Scan(&d.userID, &value); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan due package: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &d.pkg); err != nil {
			slog.Warn("Skipping undecodable package", "user_id", d.userID, "error", err)
			continue
		}
		pending = append(pending, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("iterate due packages: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("close due packages: %w", err)
	}

	for _, d := range pending {
		d.pkg.Status = domain.PackageExpired
		value, err := json.Marshal(&d.pkg)
		if err != nil {
			return 0, fmt.Errorf("encode package: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE blobs SET value_json = ?, status = ?, updated_at = ?
			WHERE user_id = ? AND key = ?`,
			string(value), string(domain.PackageExpired), time.Now().Unix(), d.userID, KeyPackage); err != nil {
			return 0, fmt.Errorf("expire package: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expiry: %w", err)
	}
	return int64(len(pending)), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) load(ctx context.Context, userID, key string, dst any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value_json FROM blobs WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) save(ctx context.Context, userID, key string, v any, status, expiresAt any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	query := `
	INSERT INTO blobs (user_id, key, value_json, status, expires_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, key) DO UPDATE SET
		value_json = excluded.value_json,
		status = excluded.status,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, s.retry, "save "+key, func() error {
		if _, err := s.db.ExecContext(ctx, query,
			userID, key, string(value), status, expiresAt, time.Now().Unix()); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		return nil
	})
}
