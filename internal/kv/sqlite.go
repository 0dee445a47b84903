package kv

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore backs the document store with a local SQLite file. It is the
// default for single-box deployments and the fixture for tests (":memory:").
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("goose up: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Document, error) {
	var doc Document
	doc.Key = key

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM documents WHERE key = ?`, key,
	).Scan(&value, &doc.Version)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %q: %w", key, err)
	}

	doc.Value = json.RawMessage(value)
	return doc, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value json.RawMessage, expectedVersion int64) (int64, error) {
	if expectedVersion == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (key, value, version) VALUES (?, ?, 1)`,
			key, string(value),
		)
		if err != nil {
			return 0, fmt.Errorf("insert document %q: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			// Key already exists; create-only Put loses.
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE key = ? AND version = ?`,
		string(value), key, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update document %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE key = ?`, key).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check document %q: %w", key, err)
		}
		if exists == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string, expectedVersion int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE key = ? AND version = ?`, key, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE key = ?`, key).Scan(&exists); err != nil {
			return fmt.Errorf("check document %q: %w", key, err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, version FROM documents WHERE key LIKE ? || '%' ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents %q: %w", prefix, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var value string
		if err := rows.Scan(&doc.Key, &value, &doc.Version); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Value = json.RawMessage(value)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
