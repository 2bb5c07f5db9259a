package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/operantlab/triseq/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage session parameter files",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default parameter file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.Save(configPath, config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective session parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("mode:            %s (shaping step %d)\n", cfg.Mode, cfg.ShapingStep)
		fmt.Printf("subject:         %s\n", cfg.SubjectID)
		fmt.Printf("wait times:      %.2f / %.2f / %.2f s\n", cfg.WaitTimes[0], cfg.WaitTimes[1], cfg.WaitTimes[2])
		fmt.Printf("intervals:       %.2f / %.2f s\n", cfg.Intervals[0], cfg.Intervals[1])
		fmt.Printf("release window:  %.2f s\n", cfg.ReleaseWindow)
		fmt.Printf("reward:          %.2f s\n", cfg.RewardDuration)
		fmt.Printf("ITI correct:     %.2f + U(0, %.2f) s\n", cfg.ITIFixedCorrect, cfg.ITIRandCorrect)
		fmt.Printf("ITI error:       %.2f + U(0, %.2f) s\n", cfg.ITIFixedError, cfg.ITIRandError)
		fmt.Printf("max trials:      %d\n", cfg.MaxTrials)
		fmt.Printf("controls:        %s %s %s\n", cfg.Controls[0], cfg.Controls[1], cfg.Controls[2])
		if cfg.Adaptive.Enabled {
			fmt.Printf("adaptive:        window %d, thresholds %.2f/%.2f, step %.2f s, range %.2f-%.2f s\n",
				cfg.Adaptive.Window, cfg.Adaptive.ThresholdHigh, cfg.Adaptive.ThresholdLow,
				cfg.Adaptive.Step, cfg.Adaptive.MinWait, cfg.Adaptive.MaxWait)
		} else {
			fmt.Println("adaptive:        disabled")
		}
		fmt.Printf("data dir:        %s\n", cfg.DataDir)
		fmt.Printf("database:        %s\n", cfg.DBPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
