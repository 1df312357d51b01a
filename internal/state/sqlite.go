package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			base_url TEXT NOT NULL,
			start_ts TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			base_url TEXT NOT NULL,
			challenge_id INTEGER NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			submitted_ts TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS submissions_by_board ON submissions(base_url, submitted_ts);`,
		`CREATE TABLE IF NOT EXISTS challenge_progress (
			base_url TEXT NOT NULL,
			challenge_id INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_status TEXT NOT NULL DEFAULT '',
			last_ts TEXT NOT NULL DEFAULT '',
			solved_ts TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(base_url, challenge_id)
		);`,
		`CREATE TABLE IF NOT EXISTS board_snapshots (
			base_url TEXT PRIMARY KEY,
			challenges_json TEXT NOT NULL,
			solves_json TEXT NOT NULL,
			saved_ts TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StartSession(ctx context.Context, session Session) error {
	start := session.StartTS
	if start.IsZero() {
		start = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions(id, base_url, start_ts) VALUES(?,?,?)`,
		session.ID,
		strings.TrimSpace(session.BaseURL),
		start.UTC().Format(timeLayout),
	)
	return err
}

func (s *SQLiteStore) GetLastSession(ctx context.Context, baseURL string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, base_url, start_ts
		FROM sessions
		WHERE base_url = ?
		ORDER BY start_ts DESC, rowid DESC
		LIMIT 1
	`, strings.TrimSpace(baseURL))
	var (
		out      Session
		startRaw string
	)
	if err := row.Scan(&out.ID, &out.BaseURL, &startRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if t, err := time.Parse(timeLayout, startRaw); err == nil {
		out.StartTS = t
	}
	return &out, nil
}

// RecordSubmission journals one attempt and folds it into challenge_progress.
func (s *SQLiteStore) RecordSubmission(ctx context.Context, sub Submission) (err error) {
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("record submission: missing id")
	}
	ts := sub.SubmittedTS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	stamp := ts.UTC().Format(timeLayout)
	baseURL := strings.TrimSpace(sub.BaseURL)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO submissions(id, session_id, base_url, challenge_id, fingerprint, status, message, submitted_ts)
		VALUES(?,?,?,?,?,?,?,?)
	`, sub.ID, sub.SessionID, baseURL, sub.ChallengeID, sub.Fingerprint, sub.Status, sub.Message, stamp); err != nil {
		return err
	}
	solvedTS := ""
	if sub.Status == "correct" {
		solvedTS = stamp
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO challenge_progress(base_url, challenge_id, attempts, last_status, last_ts, solved_ts)
		VALUES(?, ?, 1, ?, ?, ?)
		ON CONFLICT(base_url, challenge_id) DO UPDATE SET
			attempts = challenge_progress.attempts + 1,
			last_status = excluded.last_status,
			last_ts = excluded.last_ts,
			solved_ts = CASE
				WHEN challenge_progress.solved_ts = '' THEN excluded.solved_ts
				ELSE challenge_progress.solved_ts
			END
	`, baseURL, sub.ChallengeID, sub.Status, stamp, solvedTS); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentSubmissions(ctx context.Context, baseURL string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, base_url, challenge_id, fingerprint, status, message, submitted_ts
		FROM submissions
		WHERE base_url = ?
		ORDER BY submitted_ts DESC, rowid DESC
		LIMIT ?
	`, strings.TrimSpace(baseURL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var (
			sub Submission
			ts  string
		)
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.BaseURL, &sub.ChallengeID, &sub.Fingerprint, &sub.Status, &sub.Message, &ts); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			sub.SubmittedTS = t
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetChallengeProgressMap(ctx context.Context, baseURL string) (map[int]ChallengeProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT challenge_id, attempts, last_status, last_ts, solved_ts
		FROM challenge_progress
		WHERE base_url = ?
	`, strings.TrimSpace(baseURL))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]ChallengeProgress{}
	for rows.Next() {
		var (
			p         ChallengeProgress
			lastRaw   string
			solvedRaw string
		)
		if err := rows.Scan(&p.ChallengeID, &p.Attempts, &p.LastStatus, &lastRaw, &solvedRaw); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, lastRaw); err == nil {
			p.LastTS = t
		}
		if t, err := time.Parse(timeLayout, solvedRaw); err == nil {
			p.SolvedTS = t
		}
		out[p.ChallengeID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) SaveBoardSnapshot(ctx context.Context, snap BoardSnapshot) error {
	baseURL := strings.TrimSpace(snap.BaseURL)
	if baseURL == "" {
		return nil
	}
	challenges, err := json.Marshal(snap.Challenges)
	if err != nil {
		return fmt.Errorf("encode challenges: %w", err)
	}
	solves, err := json.Marshal(snap.Solves)
	if err != nil {
		return fmt.Errorf("encode solves: %w", err)
	}
	saved := snap.SavedTS
	if saved.IsZero() {
		saved = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO board_snapshots(base_url, challenges_json, solves_json, saved_ts)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(base_url) DO UPDATE SET
			challenges_json = excluded.challenges_json,
			solves_json = excluded.solves_json,
			saved_ts = excluded.saved_ts
	`, baseURL, string(challenges), string(solves), saved.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) LoadBoardSnapshot(ctx context.Context, baseURL string) (*BoardSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT base_url, challenges_json, solves_json, saved_ts
		FROM board_snapshots
		WHERE base_url = ?
	`, strings.TrimSpace(baseURL))
	var (
		out           BoardSnapshot
		challengesRaw string
		solvesRaw     string
		ts            string
	)
	if err := row.Scan(&out.BaseURL, &challengesRaw, &solvesRaw, &ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(challengesRaw), &out.Challenges); err != nil {
		return nil, fmt.Errorf("decode cached challenges: %w", err)
	}
	if err := json.Unmarshal([]byte(solvesRaw), &out.Solves); err != nil {
		return nil, fmt.Errorf("decode cached solves: %w", err)
	}
	if t, err := time.Parse(timeLayout, ts); err == nil {
		out.SavedTS = t
	}
	return &out, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for key, value := range values {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO app_settings(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, value); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context, baseURL string) (Summary, error) {
	var out Summary
	baseURL = strings.TrimSpace(baseURL)
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions WHERE base_url = ?) as sessions,
			COUNT(*) as submissions,
			COALESCE(SUM(CASE WHEN status = 'correct' THEN 1 ELSE 0 END),0) as correct,
			COALESCE(SUM(CASE WHEN status = 'incorrect' THEN 1 ELSE 0 END),0) as incorrect
		FROM submissions
		WHERE base_url = ?
	`, baseURL, baseURL)
	if err := row.Scan(&out.Sessions, &out.Submissions, &out.Correct, &out.Incorrect); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
