package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/operantlab/triseq/internal/config"
	"github.com/operantlab/triseq/internal/device"
	"github.com/operantlab/triseq/internal/recorder"
	"github.com/operantlab/triseq/internal/store"
	"github.com/operantlab/triseq/internal/task"
	"github.com/operantlab/triseq/internal/tui"
)

var (
	runSubject string
	runLabel   string
	runNoDB    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a session in the terminal",
	RunE:  runSession,
}

func init() {
	runCmd.Flags().StringVar(&runSubject, "subject", "", "Override the configured subject ID")
	runCmd.Flags().StringVar(&runLabel, "label", "", "Session label for the data directory")
	runCmd.Flags().BoolVar(&runNoDB, "no-db", false, "Skip the SQLite database, write trial files only")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if runSubject != "" {
		cfg.SubjectID = runSubject
	}
	if runLabel != "" {
		cfg.SessionLabel = runLabel
	}

	taskCfg := cfg.ToTask()

	files, err := recorder.NewFileRecorder(cfg.DataDir, cfg.SubjectID, cfg.SessionLabel)
	if err != nil {
		return fmt.Errorf("setting up trial files: %w", err)
	}

	recorders := task.MultiRecorder{files}
	var sessionLog *store.SessionLog
	if !runNoDB {
		db, err := store.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		sessionLog, err = db.BeginSession(taskCfg)
		if err != nil {
			return fmt.Errorf("registering session: %w", err)
		}
		recorders = append(recorders, sessionLog)
		log.Printf("Session %s recording to %s", sessionLog.ID()[:8], cfg.DBPath)
	}

	port := device.NewKeyPort(taskCfg.Controls)
	session := task.NewSession(taskCfg, port, recorders, nil)

	app := tui.New(session, port, files.Dir())
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	snap := session.Snapshot()
	if sessionLog != nil {
		for _, adj := range snap.Adjustments {
			if err := sessionLog.RecordAdjustment(adj); err != nil {
				log.Printf("Warning: adjustment at trial %d not recorded: %v", adj.TrialIndex, err)
			}
		}
	}

	total := 0
	for _, n := range snap.Stats {
		total += n
	}
	fmt.Printf("Completed %d trials. Data in %s\n", total, files.Dir())
	return nil
}
