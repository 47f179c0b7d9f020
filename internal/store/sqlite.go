package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"rankboard/internal/model"

	_ "modernc.org/sqlite"
)

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas apply per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			class_id TEXT NOT NULL,
			parent_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id, rank);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			board_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_issued ON events(issued_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readJSONRows[T any](ctx context.Context, q queryer, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadBoard(ctx context.Context, q queryer) (model.Board, error) {
	var js string
	err := q.QueryRowContext(ctx, `SELECT json FROM boards ORDER BY id LIMIT 1`).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, ErrNoBoard
	}
	if err != nil {
		return model.Board{}, err
	}
	var b model.Board
	if err := json.Unmarshal([]byte(js), &b); err != nil {
		return model.Board{}, err
	}
	return b, nil
}

func saveBoard(ctx context.Context, q queryer, b model.Board, now time.Time) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT OR REPLACE INTO boards(id, json, updated_at_unixms) VALUES(?, ?, ?)`,
		b.ID, string(raw), now.UnixMilli())
	return err
}

func loadItems(ctx context.Context, q queryer) ([]model.Item, error) {
	items, err := readJSONRows[model.Item](ctx, q, `SELECT json FROM items ORDER BY parent_id, rank, id`)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

func saveItem(ctx context.Context, q queryer, it model.Item) error {
	raw, err := json.Marshal(it)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT OR REPLACE INTO items(id, class_id, parent_id, rank, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		it.ID, it.ClassID, it.ParentID, it.Rank, string(raw), it.UpdatedAt.UTC().UnixMilli())
	return err
}
