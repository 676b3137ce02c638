package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the ledger in an embedded SQLite database: one row per
// record plus a single meta row for the counter and session start.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writers serialized within the process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS usage_records (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			timestamp      INTEGER NOT NULL,
			input_tokens   INTEGER NOT NULL,
			output_tokens  INTEGER NOT NULL,
			input_images   INTEGER NOT NULL,
			output_images  INTEGER NOT NULL,
			input_cost     REAL NOT NULL,
			output_cost    REAL NOT NULL,
			total_cost     REAL NOT NULL,
			model          TEXT NOT NULL,
			success        INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS usage_meta (
			id                   INTEGER PRIMARY KEY CHECK (id = 1),
			id_counter           INTEGER NOT NULL,
			first_generation_at  INTEGER
		);
	`)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Describe() string { return "sqlite:" + s.path }

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var first sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT id_counter, first_generation_at FROM usage_meta WHERE id = 1`).
		Scan(&snap.IDCounter, &first)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("read ledger meta: %w", err)
	}
	if first.Valid {
		v := first.Int64
		snap.FirstGenerationAt = &v
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, input_tokens, output_tokens, input_images, output_images,
		       input_cost, output_cost, total_cost, model, success
		FROM usage_records ORDER BY seq`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read ledger records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.InputTokens, &r.OutputTokens, &r.InputImages, &r.OutputImages,
			&r.InputCost, &r.OutputCost, &r.TotalCost, &r.Model, &r.Success); err != nil {
			return Snapshot{}, fmt.Errorf("scan ledger record: %w", err)
		}
		snap.Records = append(snap.Records, r)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate ledger records: %w", err)
	}
	return snap, nil
}

// Save inserts the records not yet stored and updates the meta row in one
// transaction. Records are matched by id: everything after the last stored
// record is appended, and when that record is not in snap at all every
// record is offered and duplicates are skipped.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	var lastID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM usage_records ORDER BY seq DESC LIMIT 1`).Scan(&lastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read last ledger record: %w", err)
	}
	pending := snap.Records
	if lastID != "" {
		for i := len(snap.Records) - 1; i >= 0; i-- {
			if snap.Records[i].ID == lastID {
				pending = snap.Records[i+1:]
				break
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO usage_records
			(id, timestamp, input_tokens, output_tokens, input_images, output_images,
			 input_cost, output_cost, total_cost, model, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range pending {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Timestamp, r.InputTokens, r.OutputTokens, r.InputImages, r.OutputImages,
			r.InputCost, r.OutputCost, r.TotalCost, r.Model, r.Success); err != nil {
			return fmt.Errorf("insert ledger record %s: %w", r.ID, err)
		}
	}

	var first sql.NullInt64
	if snap.FirstGenerationAt != nil {
		first = sql.NullInt64{Int64: *snap.FirstGenerationAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage_meta (id, id_counter, first_generation_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET id_counter = excluded.id_counter, first_generation_at = excluded.first_generation_at`,
		snap.IDCounter, first); err != nil {
		return fmt.Errorf("update ledger meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_records`); err != nil {
		return fmt.Errorf("delete ledger records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_meta`); err != nil {
		return fmt.Errorf("delete ledger meta: %w", err)
	}
	return tx.Commit()
}
