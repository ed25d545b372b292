package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present. The records table holds
// the serialized profile and credential documents keyed by name.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS records (
				name TEXT PRIMARY KEY,
				body TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS records (
				name VARCHAR(100) NOT NULL PRIMARY KEY,
				body MEDIUMTEXT NOT NULL,
				updated_at DATETIME NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// RecordStore reads and writes named serialized documents. It is the
// storage port behind the application state container.
type RecordStore interface {
	LoadRecord(ctx context.Context, name string) (string, error)
	SaveRecord(ctx context.Context, name, body string) error
}

// ErrRecordNotFound reports a missing named record.
var ErrRecordNotFound = errors.New("record not found")

// DBRecordStore implements RecordStore over the records table.
type DBRecordStore struct {
	db *sql.DB
}

// NewRecordStore wraps an open database as a RecordStore.
func NewRecordStore(db *sql.DB) *DBRecordStore {
	return &DBRecordStore{db: db}
}

// LoadRecord fetches the body of the named record.
func (s *DBRecordStore) LoadRecord(ctx context.Context, name string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE name = ?`, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("load record %s: %w", name, err)
	}
	return body, nil
}

// SaveRecord upserts the named record.
func (s *DBRecordStore) SaveRecord(ctx context.Context, name, body string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE records SET body = ?, updated_at = ? WHERE name = ?`, body, now, name)
	if err != nil {
		return fmt.Errorf("save record %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO records (name, body, updated_at) VALUES (?, ?, ?)`, name, body, now); err != nil {
			return fmt.Errorf("insert record %s: %w", name, err)
		}
	}
	return nil
}
