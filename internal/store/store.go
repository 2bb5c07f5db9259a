// Package store provides SQLite-backed persistence for recorded sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/operantlab/triseq/internal/task"
	_ "modernc.org/sqlite"
)

// Store provides access to the triseq SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		label TEXT,
		mode TEXT NOT NULL,
		config_json TEXT NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trials (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		trial_index INTEGER NOT NULL,
		mode TEXT NOT NULL,
		result_code INTEGER NOT NULL,
		result_text TEXT NOT NULL,
		wait1_s REAL NOT NULL,
		wait2_s REAL NOT NULL,
		wait3_s REAL NOT NULL,
		interval1_s REAL NOT NULL,
		interval2_s REAL NOT NULL,
		reward_s REAL NOT NULL,
		release_window_s REAL NOT NULL,
		press_times TEXT,
		release_times TEXT,
		reward_onset_s REAL,
		reward_offset_s REAL,
		iti_planned_s REAL NOT NULL,
		started_wall DATETIME NOT NULL,
		start_offset_s REAL NOT NULL,
		events_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		trial_index INTEGER NOT NULL,
		accuracy REAL NOT NULL,
		wait1_s REAL NOT NULL,
		wait2_s REAL NOT NULL,
		wait3_s REAL NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_trials_session_id ON trials(session_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_session_id ON adjustments(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Session Operations ---

// SessionRow is one row of the sessions table.
type SessionRow struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Label     string    `json:"label,omitempty"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Trials    int       `json:"trials"`
}

// SessionLog records trials and adjustments against one session row. It
// implements task.Recorder.
type SessionLog struct {
	store *Store
	id    string
}

// BeginSession inserts a session row and returns a SessionLog bound to it.
func (s *Store) BeginSession(cfg task.Config) (*SessionLog, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO sessions (id, subject_id, label, mode, config_json, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, cfg.SubjectID, cfg.SessionLabel, string(cfg.Mode), string(cfgJSON), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &SessionLog{store: s, id: id}, nil
}

// ID returns the session row ID.
func (l *SessionLog) ID() string { return l.id }

// Record implements task.Recorder.
func (l *SessionLog) Record(t task.Trial) error {
	eventsJSON, err := json.Marshal(t.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	_, err = l.store.db.Exec(
		`INSERT INTO trials (
			id, session_id, trial_index, mode, result_code, result_text,
			wait1_s, wait2_s, wait3_s, interval1_s, interval2_s, reward_s, release_window_s,
			press_times, release_times, reward_onset_s, reward_offset_s, iti_planned_s,
			started_wall, start_offset_s, events_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), l.id, t.Index, string(t.Mode), int(t.Outcome), t.OutcomeText,
		secs(t.Config.Wait[0]), secs(t.Config.Wait[1]), secs(t.Config.Wait[2]),
		secs(t.Config.Interval[0]), secs(t.Config.Interval[1]),
		secs(t.Config.RewardDuration), secs(t.Config.ReleaseWindow),
		joinSecs(t.PressTimes), joinSecs(t.ReleaseTimes),
		secs(t.RewardOnset), secs(t.RewardOffset), secs(t.ITIPlanned),
		t.StartedWall.UTC(), secs(t.StartOffset), string(eventsJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}
	return nil
}

// RecordAdjustment persists one adaptive difficulty adjustment.
func (l *SessionLog) RecordAdjustment(a task.Adjustment) error {
	_, err := l.store.db.Exec(
		`INSERT INTO adjustments (id, session_id, trial_index, accuracy, wait1_s, wait2_s, wait3_s, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), l.id, a.TrialIndex, a.Accuracy,
		secs(a.Wait[0]), secs(a.Wait[1]), secs(a.Wait[2]), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// ListSessions returns all sessions, newest first, with trial counts.
func (s *Store) ListSessions() ([]SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.subject_id, s.label, s.mode, s.started_at,
		        (SELECT COUNT(*) FROM trials t WHERE t.session_id = s.id)
		 FROM sessions s ORDER BY s.started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var row SessionRow
		var label sql.NullString
		if err := rows.Scan(&row.ID, &row.SubjectID, &label, &row.Mode, &row.StartedAt, &row.Trials); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if label.Valid {
			row.Label = label.String
		}
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}

// FindSession resolves a full or prefix session ID to one session row.
func (s *Store) FindSession(idOrPrefix string) (*SessionRow, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}
	var match *SessionRow
	for i := range sessions {
		if sessions[i].ID == idOrPrefix {
			return &sessions[i], nil
		}
		if strings.HasPrefix(sessions[i].ID, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("session prefix %q is ambiguous", idOrPrefix)
			}
			match = &sessions[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("session %q not found", idOrPrefix)
	}
	return match, nil
}

// TrialSummary is one trial row flattened for export. Durations are in
// seconds; press and release times are comma-joined offsets.
type TrialSummary struct {
	Index         int
	Mode          string
	ResultCode    int
	ResultText    string
	Wait          [3]float64
	Interval      [2]float64
	Reward        float64
	ReleaseWindow float64
	PressTimes    string
	ReleaseTimes  string
	RewardOnset   float64
	RewardOffset  float64
	ITIPlanned    float64
	StartedWall   time.Time
}

// TrialsForSession returns trial summaries for a session in trial order.
func (s *Store) TrialsForSession(sessionID string) ([]TrialSummary, error) {
	rows, err := s.db.Query(
		`SELECT trial_index, mode, result_code, result_text,
		        wait1_s, wait2_s, wait3_s, interval1_s, interval2_s, reward_s, release_window_s,
		        press_times, release_times, reward_onset_s, reward_offset_s, iti_planned_s, started_wall
		 FROM trials WHERE session_id = ? ORDER BY trial_index`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var trials []TrialSummary
	for rows.Next() {
		var t TrialSummary
		var press, release sql.NullString
		var onset, offset sql.NullFloat64
		if err := rows.Scan(
			&t.Index, &t.Mode, &t.ResultCode, &t.ResultText,
			&t.Wait[0], &t.Wait[1], &t.Wait[2], &t.Interval[0], &t.Interval[1],
			&t.Reward, &t.ReleaseWindow,
			&press, &release, &onset, &offset, &t.ITIPlanned, &t.StartedWall,
		); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if press.Valid {
			t.PressTimes = press.String
		}
		if release.Valid {
			t.ReleaseTimes = release.String
		}
		if onset.Valid {
			t.RewardOnset = onset.Float64
		}
		if offset.Valid {
			t.RewardOffset = offset.Float64
		}
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// OutcomeTally returns per-result-code trial counts for a session.
func (s *Store) OutcomeTally(sessionID string) (map[int]int, error) {
	rows, err := s.db.Query(
		`SELECT result_code, COUNT(*) FROM trials WHERE session_id = ? GROUP BY result_code`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tally: %w", err)
	}
	defer rows.Close()

	tally := make(map[int]int)
	for rows.Next() {
		var code, n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tally[code] = n
	}
	return tally, rows.Err()
}

func secs(d time.Duration) float64 {
	return d.Seconds()
}

func joinSecs(ds []time.Duration) string {
	if len(ds) == 0 {
		return ""
	}
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = strconv.FormatFloat(d.Seconds(), 'f', 4, 64)
	}
	return strings.Join(parts, ",")
}
