// Package recorder writes per-trial JSON files and a running session
// summary CSV for offline analysis.
package recorder

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/operantlab/triseq/internal/task"
)

// FileRecorder implements task.Recorder against a per-session directory:
//
//	<root>/<subject>/<label>/trial_0001.json
//	<root>/<subject>/<label>/session_summary.csv
//
// Durations in the output are seconds, not Go duration strings, so the
// files load directly into analysis tooling.
type FileRecorder struct {
	mu  sync.Mutex
	dir string
}

// NewFileRecorder creates the session directory and returns a recorder
// bound to it. An empty label falls back to the session start timestamp.
func NewFileRecorder(root, subjectID, label string) (*FileRecorder, error) {
	if subjectID == "" {
		subjectID = "subject"
	}
	if label == "" {
		label = time.Now().Format("20060102_150405")
	}
	dir := filepath.Join(root, subjectID, label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

// Dir returns the session directory files are written into.
func (r *FileRecorder) Dir() string { return r.dir }

// Record implements task.Recorder.
func (r *FileRecorder) Record(t task.Trial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeTrialJSON(t); err != nil {
		return err
	}
	return r.appendSummaryRow(t)
}

type trialEventJSON struct {
	Type    string  `json:"type"`
	State   string  `json:"state,omitempty"`
	Control int     `json:"control,omitempty"`
	Outcome *int    `json:"result_code,omitempty"`
	At      float64 `json:"at_s"`
}

type trialJSON struct {
	Index        int              `json:"trial_index"`
	Mode         string           `json:"mode"`
	SubjectID    string           `json:"subject_id"`
	SessionLabel string           `json:"session_label,omitempty"`
	StartedWall  string           `json:"trial_start_walltime"`
	StartOffset  float64          `json:"trial_start_monotonic_s"`
	Events       []trialEventJSON `json:"events"`
	PressTimes   []float64        `json:"press_times_s"`
	ReleaseTimes []float64        `json:"release_times_s"`
	ResultCode   int              `json:"result_code"`
	ResultText   string           `json:"result_text"`
	RewardOnset  float64          `json:"reward_onset_s,omitempty"`
	RewardOffset float64          `json:"reward_offset_s,omitempty"`
	ITIPlanned   float64          `json:"iti_duration_planned_s"`
	Config       configJSON       `json:"config_snapshot"`
}

type configJSON struct {
	Mode            string     `json:"mode"`
	ShapingStep     int        `json:"shaping_step"`
	Wait            [3]float64 `json:"wait_times_s"`
	Interval        [2]float64 `json:"intervals_s"`
	RewardDuration  float64    `json:"reward_duration_s"`
	ReleaseWindow   float64    `json:"release_window_s"`
	ITIFixedCorrect float64    `json:"iti_fixed_correct_s"`
	ITIRandCorrect  float64    `json:"iti_rand_correct_s"`
	ITIFixedError   float64    `json:"iti_fixed_error_s"`
	ITIRandError    float64    `json:"iti_rand_error_s"`
	MaxTrials       int        `json:"max_trials"`
}

func (r *FileRecorder) writeTrialJSON(t task.Trial) error {
	out := trialJSON{
		Index:        t.Index,
		Mode:         string(t.Mode),
		SubjectID:    t.SubjectID,
		SessionLabel: t.SessionLabel,
		StartedWall:  t.StartedWall.Format(time.RFC3339Nano),
		StartOffset:  t.StartOffset.Seconds(),
		Events:       make([]trialEventJSON, 0, len(t.Events)),
		PressTimes:   toSecs(t.PressTimes),
		ReleaseTimes: toSecs(t.ReleaseTimes),
		ResultCode:   int(t.Outcome),
		ResultText:   t.OutcomeText,
		RewardOnset:  t.RewardOnset.Seconds(),
		RewardOffset: t.RewardOffset.Seconds(),
		ITIPlanned:   t.ITIPlanned.Seconds(),
		Config: configJSON{
			Mode:            string(t.Config.Mode),
			ShapingStep:     t.Config.ShapingStep,
			Wait:            [3]float64{t.Config.Wait[0].Seconds(), t.Config.Wait[1].Seconds(), t.Config.Wait[2].Seconds()},
			Interval:        [2]float64{t.Config.Interval[0].Seconds(), t.Config.Interval[1].Seconds()},
			RewardDuration:  t.Config.RewardDuration.Seconds(),
			ReleaseWindow:   t.Config.ReleaseWindow.Seconds(),
			ITIFixedCorrect: t.Config.ITIFixedCorrect.Seconds(),
			ITIRandCorrect:  t.Config.ITIRandCorrect.Seconds(),
			ITIFixedError:   t.Config.ITIFixedError.Seconds(),
			ITIRandError:    t.Config.ITIRandError.Seconds(),
			MaxTrials:       t.Config.MaxTrials,
		},
	}
	for _, ev := range t.Events {
		ej := trialEventJSON{
			Type:    string(ev.Type),
			State:   string(ev.State),
			Control: ev.Control,
			At:      ev.At.Seconds(),
		}
		if ev.Outcome != nil {
			code := int(*ev.Outcome)
			ej.Outcome = &code
		}
		out.Events = append(out.Events, ej)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trial: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("trial_%04d.json", t.Index))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write trial file: %w", err)
	}
	return nil
}

var summaryHeader = []string{
	"trial_index", "mode", "result_code", "result_text",
	"wait1_s", "wait2_s", "wait3_s", "interval1_s", "interval2_s",
	"reward_s", "release_window_s",
	"press_times_s", "release_times_s",
	"reward_onset_s", "reward_offset_s", "iti_planned_s",
	"trial_start_walltime",
}

func (r *FileRecorder) appendSummaryRow(t task.Trial) error {
	path := filepath.Join(r.dir, "session_summary.csv")
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(summaryHeader); err != nil {
			return fmt.Errorf("write summary header: %w", err)
		}
	}
	row := []string{
		strconv.Itoa(t.Index),
		string(t.Mode),
		strconv.Itoa(int(t.Outcome)),
		t.OutcomeText,
		fsec(t.Config.Wait[0]), fsec(t.Config.Wait[1]), fsec(t.Config.Wait[2]),
		fsec(t.Config.Interval[0]), fsec(t.Config.Interval[1]),
		fsec(t.Config.RewardDuration), fsec(t.Config.ReleaseWindow),
		joinSecs(t.PressTimes), joinSecs(t.ReleaseTimes),
		fsec(t.RewardOnset), fsec(t.RewardOffset), fsec(t.ITIPlanned),
		t.StartedWall.Format(time.RFC3339Nano),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write summary row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return nil
}

func toSecs(ds []time.Duration) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.Seconds()
	}
	return out
}

func fsec(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 4, 64)
}

func joinSecs(ds []time.Duration) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = fsec(d)
	}
	return strings.Join(parts, ",")
}
