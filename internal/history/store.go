// Package history persists run summaries and their execution records to a
// SQLite database so past runs stay queryable.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/darmado/postman2burp/internal/runner"
)

// Common errors.
var (
	ErrNotFound    = errors.New("run not found")
	ErrStoreClosed = errors.New("history store is closed")
)

// RunRecord is a stored run summary.
type RunRecord struct {
	ID             string    `json:"id"`
	CollectionName string    `json:"collection"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TotalRequests  int       `json:"total_requests"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
}

// ExecutionRecord is one stored request execution.
type ExecutionRecord struct {
	ID              string            `json:"id"`
	RunID           string            `json:"run_id"`
	Seq             int               `json:"seq"`
	Name            string            `json:"name"`
	FolderPath      []string          `json:"folder,omitempty"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	Status          int               `json:"status"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	ElapsedMs       int64             `json:"elapsed_ms"`
	Error           string            `json:"error,omitempty"`
	Success         bool              `json:"success"`
}

// Store is a SQLite-backed run archive.
type Store struct {
	db     *sql.DB
	closed bool
}

// New opens (or creates) a store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// NewInMemory creates an in-memory store, useful for testing.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			collection_name TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			total_requests INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			name TEXT,
			folder_path TEXT,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			request_headers TEXT,
			request_body TEXT,
			status INTEGER,
			response_headers TEXT,
			response_body TEXT,
			elapsed_ms INTEGER,
			error TEXT,
			success INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_executions_run ON executions(run_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a summary and all of its execution results, returning the
// run id.
func (s *Store) SaveRun(ctx context.Context, summary *runner.RunSummary) (string, error) {
	if s.closed {
		return "", ErrStoreClosed
	}

	runID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, collection_name, started_at, finished_at, total_requests, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, summary.CollectionName, summary.StartTime, summary.EndTime,
		summary.TotalRequests, summary.Succeeded, summary.Failed)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, result := range summary.Results {
		reqHeaders, _ := json.Marshal(result.Request.Headers)

		var status int
		var respHeaders []byte
		var respBody string
		if result.Response != nil {
			status = result.Response.Status
			respHeaders, _ = json.Marshal(result.Response.Headers)
			respBody = result.Response.Body
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO executions (
				id, run_id, seq, name, folder_path, method, url,
				request_headers, request_body, status, response_headers,
				response_body, elapsed_ms, error, success
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, result.ID, runID, i, result.Name, strings.Join(result.FolderPath, "/"),
			result.Request.Method, result.Request.URL, string(reqHeaders),
			result.Request.Body, status, string(respHeaders), respBody,
			result.ElapsedMs, result.Error, result.Success)
		if err != nil {
			return "", fmt.Errorf("failed to insert execution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, collection_name, started_at, finished_at, total_requests, succeeded, failed
		FROM runs ORDER BY started_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.CollectionName, &r.StartedAt, &r.FinishedAt,
			&r.TotalRequests, &r.Succeeded, &r.Failed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Executions returns the execution records of one run in dispatch order.
func (s *Store) Executions(ctx context.Context, runID string) ([]ExecutionRecord, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, name, folder_path, method, url,
			request_headers, request_body, status, response_headers,
			response_body, elapsed_ms, error, success
		FROM executions WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var folder, reqHeaders, respHeaders string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Seq, &rec.Name, &folder,
			&rec.Method, &rec.URL, &reqHeaders, &rec.RequestBody, &rec.Status,
			&respHeaders, &rec.ResponseBody, &rec.ElapsedMs, &rec.Error,
			&rec.Success); err != nil {
			return nil, err
		}
		if folder != "" {
			rec.FolderPath = strings.Split(folder, "/")
		}
		json.Unmarshal([]byte(reqHeaders), &rec.RequestHeaders)
		json.Unmarshal([]byte(respHeaders), &rec.ResponseHeaders)
		records = append(records, rec)
	}

	if len(records) == 0 {
		if err := s.runExists(ctx, runID); err != nil {
			return nil, err
		}
	}
	return records, rows.Err()
}

func (s *Store) runExists(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
