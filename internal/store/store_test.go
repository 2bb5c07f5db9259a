package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/operantlab/triseq/internal/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func sampleTrial(index int, outcome task.Outcome) task.Trial {
	cfg := task.DefaultConfig()
	return task.Trial{
		Index:       index,
		Mode:        cfg.Mode,
		SubjectID:   cfg.SubjectID,
		StartedWall: time.Now(),
		StartOffset: time.Duration(index) * 10 * time.Second,
		PressTimes:  []time.Duration{3 * time.Second},
		Outcome:     outcome,
		OutcomeText: outcome.String(),
		ITIPlanned:  2 * time.Second,
		Config:      cfg,
	}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Migrations must be idempotent
	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("Reopening store failed: %v", err)
	}
	s2.Close()
}

func TestSessionAndTrialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	cfg := task.DefaultConfig()
	cfg.SubjectID = "m042"
	cfg.SessionLabel = "morning"

	log, err := s.BeginSession(cfg)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if log.ID() == "" {
		t.Error("Session ID should not be empty")
	}

	if err := log.Record(sampleTrial(1, task.OutcomeCorrect)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := log.Record(sampleTrial(2, task.OutcomeNoPress)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SubjectID != "m042" || sessions[0].Label != "morning" {
		t.Errorf("Session row = %+v", sessions[0])
	}
	if sessions[0].Trials != 2 {
		t.Errorf("Expected 2 trials, got %d", sessions[0].Trials)
	}

	trials, err := s.TrialsForSession(log.ID())
	if err != nil {
		t.Fatalf("TrialsForSession failed: %v", err)
	}
	if len(trials) != 2 {
		t.Fatalf("Expected 2 trials, got %d", len(trials))
	}
	if trials[0].Index != 1 || trials[0].ResultCode != 0 || trials[0].ResultText != "Correct" {
		t.Errorf("First trial = %+v", trials[0])
	}
	if trials[0].PressTimes != "3.0000" {
		t.Errorf("Press times = %q, want 3.0000", trials[0].PressTimes)
	}
	if trials[1].ResultCode != 1 {
		t.Errorf("Second trial result = %d, want 1", trials[1].ResultCode)
	}
	if trials[0].Wait[0] != 3.0 || trials[0].ReleaseWindow != 1.0 {
		t.Errorf("Config snapshot = %+v", trials[0])
	}
}

func TestAdjustments(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	log, err := s.BeginSession(task.DefaultConfig())
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	adj := task.Adjustment{
		TrialIndex: 21,
		Accuracy:   0.9,
		Wait:       [3]time.Duration{2900 * time.Millisecond, 2900 * time.Millisecond, 2900 * time.Millisecond},
	}
	if err := log.RecordAdjustment(adj); err != nil {
		t.Fatalf("RecordAdjustment failed: %v", err)
	}
}

func TestOutcomeTally(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	log, err := s.BeginSession(task.DefaultConfig())
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	for i, o := range []task.Outcome{task.OutcomeCorrect, task.OutcomeCorrect, task.OutcomeWrongButton} {
		if err := log.Record(sampleTrial(i+1, o)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tally, err := s.OutcomeTally(log.ID())
	if err != nil {
		t.Fatalf("OutcomeTally failed: %v", err)
	}
	if tally[0] != 2 || tally[2] != 1 {
		t.Errorf("Tally = %v, want 2 correct and 1 wrong button", tally)
	}
}

func TestFindSession(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	log, err := s.BeginSession(task.DefaultConfig())
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	row, err := s.FindSession(log.ID())
	if err != nil {
		t.Fatalf("FindSession by full ID failed: %v", err)
	}
	if row.ID != log.ID() {
		t.Errorf("FindSession returned %s, want %s", row.ID, log.ID())
	}

	row, err = s.FindSession(log.ID()[:8])
	if err != nil {
		t.Fatalf("FindSession by prefix failed: %v", err)
	}
	if row.ID != log.ID() {
		t.Errorf("Prefix lookup returned %s, want %s", row.ID, log.ID())
	}

	if _, err := s.FindSession("no-such-session"); err == nil {
		t.Error("FindSession must fail for unknown IDs")
	}
}
