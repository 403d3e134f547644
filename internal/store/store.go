package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/chunktran/internal"
)

// ErrNotFound is returned when a run or entry does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; the pipeline is sequential anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		backend TEXT NOT NULL,
		model TEXT,
		source_lang TEXT,
		target_lang TEXT,
		chunks INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	-- chunk_results journals every processed chunk of a run
	CREATE TABLE IF NOT EXISTS chunk_results (
		run_id TEXT NOT NULL,
		chunk_idx INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		draft_text TEXT,
		final_text TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		attempts INTEGER DEFAULT 0,
		latency_ms INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, chunk_idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- chunk_memory maps a normalised chunk plus a request fingerprint to its final text
	CREATE TABLE IF NOT EXISTS chunk_memory (
		fingerprint TEXT NOT NULL,
		source_text TEXT NOT NULL,
		final_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (fingerprint, source_text)
	);

	-- glossary stores user-defined terminology for consistent translation of specific terms
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- runs ---

// CreateRun inserts run with status running. An empty ID is filled in.
func (s *Store) CreateRun(ctx context.Context, run *internal.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = internal.RunRunning
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, backend, model, source_lang, target_lang, chunks, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, run.Backend, run.Model, run.SourceLang, run.TargetLang, run.Chunks, run.Status, run.StartedAt)
	return err
}

// FinishRun records the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status internal.RunStatus, chunks, failed int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, chunks = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, chunks, failed, errMsg, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

const runColumns = `id, input_path, output_path, backend, model, source_lang, target_lang, chunks, failed, status, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (internal.Run, error) {
	var r internal.Run
	var model, src, tgt, errMsg sql.NullString
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.InputPath, &r.OutputPath, &r.Backend, &model, &src, &tgt, &r.Chunks, &r.Failed, &r.Status, &errMsg, &r.StartedAt, &finished)
	r.Model, r.SourceLang, r.TargetLang, r.Error = model.String, src.String, tgt.String, errMsg.String
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]internal.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []internal.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*internal.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRun removes a run and its chunk journal.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_results WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordChunk stores the outcome of one chunk. Re-recording an index replaces it.
func (s *Store) RecordChunk(ctx context.Context, rec internal.ChunkRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunk_results (run_id, chunk_idx, source_text, draft_text, final_text, status, error_kind, error, attempts, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Index, rec.Source, rec.Draft, rec.Final, rec.Status, rec.ErrorKind, rec.Error, rec.Attempts, rec.Latency.Milliseconds())
	return err
}

// ListChunks returns the journal of a run in chunk order.
func (s *Store) ListChunks(ctx context.Context, runID string) ([]internal.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, chunk_idx, source_text, draft_text, final_text, status, error_kind, error, attempts, latency_ms FROM chunk_results WHERE run_id = ? ORDER BY chunk_idx`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []internal.ChunkRecord
	for rows.Next() {
		var rec internal.ChunkRecord
		var draft, final, kind, errMsg sql.NullString
		var latencyMs int64
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Source, &draft, &final, &rec.Status, &kind, &errMsg, &rec.Attempts, &latencyMs); err != nil {
			return nil, err
		}
		rec.Draft, rec.Final, rec.ErrorKind, rec.Error = draft.String, final.String, kind.String, errMsg.String
		rec.Latency = time.Duration(latencyMs) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- chunk memory ---

// MemoryEntry is a row from the chunk_memory table.
type MemoryEntry struct {
	Fingerprint string
	SourceText  string
	FinalText   string
	UsageCount  int
	LastUsed    time.Time
}

// MemoryStats summarises chunk memory usage.
type MemoryStats struct {
	TotalEntries int
	Fingerprints int
	TotalUsage   int
}

// LookupChunk returns the remembered final text for source under fingerprint.
func (s *Store) LookupChunk(ctx context.Context, fingerprint, source string) (string, bool, error) {
	key := normalizeText(source)
	var finalText string
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text FROM chunk_memory WHERE fingerprint = ? AND source_text = ?`,
		fingerprint, key).Scan(&finalText)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE chunk_memory SET usage_count = usage_count + 1, last_used = ? WHERE fingerprint = ? AND source_text = ?`,
		time.Now(), fingerprint, key)
	return finalText, true, err
}

// SaveChunk remembers finalText for source under fingerprint.
func (s *Store) SaveChunk(ctx context.Context, fingerprint, source, finalText string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunk_memory (fingerprint, source_text, final_text, usage_count, last_used, created_at) VALUES (?, ?, ?, 1, ?, ?)`,
		fingerprint, normalizeText(source), finalText, now, now)
	return err
}

// ListMemory returns memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context, limit int) ([]MemoryEntry, error) {
	query := `SELECT fingerprint, source_text, final_text, usage_count, last_used FROM chunk_memory ORDER BY last_used DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.Fingerprint, &e.SourceText, &e.FinalText, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// MemoryStats returns summary statistics for the chunk memory.
func (s *Store) MemoryStats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT fingerprint),
			COALESCE(SUM(usage_count), 0)
		FROM chunk_memory`).Scan(
		&stats.TotalEntries,
		&stats.Fingerprints,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ClearMemory removes all chunk memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- glossary ---

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm inserts or replaces a glossary entry and returns its ID.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_lang, target_lang, source_term, target_term)
		 VALUES (?, ?, ?, ?, ?)`,
		id, sourceLang, targetLang, normalizeTerm(sourceTerm), normalizeTerm(targetTerm))
	return id, err
}

// GetGlossaryTerms returns the glossary for a language pair as a
// source-term → target-term map, ready to embed in a prompt.
func (s *Store) GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary WHERE source_lang = ? AND target_lang = ?`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := make(map[string]string)
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		terms[src] = tgt
	}
	return terms, rows.Err()
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []any

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// normalizeText applies Unicode NFC so visually identical chunks share a key.
// Whitespace is kept: it is part of the chunk's output.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}

func normalizeTerm(term string) string {
	return norm.NFC.String(strings.TrimSpace(term))
}
