package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/lahc/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir string
	resumeOutPath string
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a search from its checkpoint",
	Long: `Starts a new trajectory from the best state stored in a checkpoint.
The history buffer is refilled with the checkpoint's best energy, so the
best energy never gets worse. Search flags override the stored settings;
the problem cannot change. The checkpoint and trace are extended in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().StringVar(&resumeOutPath, "out", "", "Write the best state as JSON to this file")
	addSearchFlags(resumeCmd.Flags())
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	prior, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return err
	}
	if err := prior.Validate(); err != nil {
		return fmt.Errorf("checkpoint %s cannot be resumed: %w", jobID, err)
	}

	cfg := runConfigFromJob(prior.Config)
	cfg.Checkpoint.DataDir = resumeDataDir
	if err := applyFlags(&cfg, cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := prior.IsCompatible(jobConfig(cfg)); err != nil {
		return err
	}

	slog.Info("Resuming search",
		"job_id", jobID,
		"problem", cfg.Problem,
		"from_step", prior.Step,
		"best_energy", prior.BestEnergy,
	)

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	s := &session{
		jobID:   jobID,
		cfg:     cfg,
		initial: prior.BestState,
		store:   checkpointStore,
		prior:   prior,
	}
	out, err := s.run(ctx)
	if err != nil {
		return err
	}

	printOutcome(cmd.OutOrStdout(), jobID, out)
	return writeBest(resumeOutPath, out.BestState)
}
