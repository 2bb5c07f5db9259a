package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/operantlab/triseq/internal/config"
	"github.com/operantlab/triseq/internal/store"
	"github.com/operantlab/triseq/internal/task"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  listSessions,
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a recorded session as CSV",
	Long:  `Export writes one CSV row per trial for a recorded session. The session may be given as a full ID or a unique prefix (see "triseq sessions").`,
	Args:  cobra.ExactArgs(1),
	RunE:  exportSession,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.New(cfg.DBPath)
}

func listSessions(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.ListSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	fmt.Printf("%-10s %-10s %-12s %-10s %-20s %s\n", "ID", "SUBJECT", "LABEL", "MODE", "STARTED", "TRIALS")
	for _, s := range sessions {
		label := s.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%-10s %-10s %-12s %-10s %-20s %d\n",
			s.ID[:8], s.SubjectID, label, s.Mode, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Trials)
	}
	return nil
}

func exportSession(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := db.FindSession(args[0])
	if err != nil {
		return err
	}
	trials, err := db.TrialsForSession(session.ID)
	if err != nil {
		return err
	}

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	header := []string{
		"trial_index", "mode", "result_code", "result_text",
		"wait1_s", "wait2_s", "wait3_s", "interval1_s", "interval2_s",
		"reward_s", "release_window_s",
		"press_times_s", "release_times_s",
		"reward_onset_s", "reward_offset_s", "iti_planned_s",
		"trial_start_walltime",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trials {
		row := []string{
			strconv.Itoa(t.Index), t.Mode,
			strconv.Itoa(t.ResultCode), t.ResultText,
			ffmt(t.Wait[0]), ffmt(t.Wait[1]), ffmt(t.Wait[2]),
			ffmt(t.Interval[0]), ffmt(t.Interval[1]),
			ffmt(t.Reward), ffmt(t.ReleaseWindow),
			t.PressTimes, t.ReleaseTimes,
			ffmt(t.RewardOnset), ffmt(t.RewardOffset), ffmt(t.ITIPlanned),
			t.StartedWall.Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "Exported %d trials to %s\n", len(trials), exportOut)
	}

	// Outcome summary on stderr so it never mixes with CSV on stdout.
	tally, err := db.OutcomeTally(session.ID)
	if err != nil {
		return err
	}
	for code := 0; code < task.NumOutcomes; code++ {
		if n := tally[code]; n > 0 {
			fmt.Fprintf(os.Stderr, "  %-16s %d\n", task.Outcome(code).String(), n)
		}
	}
	return nil
}

func ffmt(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
