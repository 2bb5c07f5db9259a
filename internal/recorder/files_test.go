package recorder

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/operantlab/triseq/internal/task"
)

func sampleTrial(index int) task.Trial {
	cfg := task.DefaultConfig()
	outcome := task.OutcomeCorrect
	return task.Trial{
		Index:       index,
		Mode:        cfg.Mode,
		SubjectID:   "m007",
		StartedWall: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Events: []task.TrialEvent{
			{Type: task.EventTrialStart, At: 10 * time.Second},
			{Type: task.EventPress, State: task.StateWait1, Control: 1, At: 13 * time.Second},
			{Type: task.EventTrialEnd, Outcome: &outcome, At: 15 * time.Second},
		},
		PressTimes:   []time.Duration{13 * time.Second},
		ReleaseTimes: []time.Duration{13500 * time.Millisecond},
		Outcome:      task.OutcomeCorrect,
		OutcomeText:  task.OutcomeCorrect.String(),
		ITIPlanned:   1500 * time.Millisecond,
		Config:       cfg,
	}
}

func TestFileRecorderWritesTrialJSON(t *testing.T) {
	root := t.TempDir()
	r, err := NewFileRecorder(root, "m007", "sessA")
	if err != nil {
		t.Fatalf("NewFileRecorder failed: %v", err)
	}
	if r.Dir() != filepath.Join(root, "m007", "sessA") {
		t.Errorf("Dir = %s", r.Dir())
	}

	if err := r.Record(sampleTrial(3)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(r.Dir(), "trial_0003.json"))
	if err != nil {
		t.Fatalf("Trial file missing: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Trial file is not valid JSON: %v", err)
	}
	if got["trial_index"].(float64) != 3 {
		t.Errorf("trial_index = %v", got["trial_index"])
	}
	if got["result_code"].(float64) != 0 || got["result_text"] != "Correct" {
		t.Errorf("result = %v / %v", got["result_code"], got["result_text"])
	}
	press := got["press_times_s"].([]any)
	if len(press) != 1 || press[0].(float64) != 13.0 {
		t.Errorf("press_times_s = %v", press)
	}
	snap := got["config_snapshot"].(map[string]any)
	if snap["release_window_s"].(float64) != 1.0 {
		t.Errorf("config snapshot release window = %v", snap["release_window_s"])
	}
	events := got["events"].([]any)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	last := events[2].(map[string]any)
	if last["result_code"].(float64) != 0 {
		t.Errorf("trial_end event result = %v", last["result_code"])
	}
}

func TestFileRecorderAppendsSummaryRows(t *testing.T) {
	r, err := NewFileRecorder(t.TempDir(), "m007", "sessA")
	if err != nil {
		t.Fatalf("NewFileRecorder failed: %v", err)
	}

	if err := r.Record(sampleTrial(1)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := r.Record(sampleTrial(2)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	f, err := os.Open(filepath.Join(r.Dir(), "session_summary.csv"))
	if err != nil {
		t.Fatalf("Summary missing: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Summary is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "trial_index" {
		t.Errorf("Header = %v", rows[0])
	}
	if rows[1][0] != "1" || rows[2][0] != "2" {
		t.Errorf("Trial indices = %s, %s", rows[1][0], rows[2][0])
	}
	if rows[1][2] != "0" || rows[1][3] != "Correct" {
		t.Errorf("Result columns = %s, %s", rows[1][2], rows[1][3])
	}
	if !strings.Contains(rows[1][11], "13.0000") {
		t.Errorf("press_times_s column = %q", rows[1][11])
	}
}

func TestFileRecorderDefaultsLabelAndSubject(t *testing.T) {
	root := t.TempDir()
	r, err := NewFileRecorder(root, "", "")
	if err != nil {
		t.Fatalf("NewFileRecorder failed: %v", err)
	}
	rel, err := filepath.Rel(root, r.Dir())
	if err != nil {
		t.Fatalf("Rel failed: %v", err)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || parts[0] != "subject" || parts[1] == "" {
		t.Errorf("Session directory = %s", rel)
	}
}
