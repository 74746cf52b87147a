package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfiscal/fisc/internal/audit"
	"github.com/openfiscal/fisc/internal/cli"
	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/config"
	"github.com/openfiscal/fisc/internal/engine"
	"github.com/openfiscal/fisc/internal/match"
	"github.com/openfiscal/fisc/internal/service"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Reconcile budget documents against the canonical registry",
		Long: `Segment every budget text file in the input directory, match each
section header against the canonical entity registry, extract programs,
funds, and expenditure allocations, and commit the approved changes.

Documents already on the processed log are skipped unless --force is given.`,
		RunE: runProcess,
	}

	cmd.Flags().Bool("force", false, "Reprocess documents already on the processed log")
	cmd.Flags().Bool("auto-approve", false, "Approve every proposal without prompting (ambiguous matches are still rejected)")
	cmd.Flags().String("input-dir", "", "Directory of budget text files (overrides config)")

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	inputDir, _ := cmd.Flags().GetString("input-dir")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if inputDir == "" {
		inputDir = cfg.InputDir
	}
	inputDir = config.ExpandPath(inputDir)

	ctx := cmd.Context()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runLog, err := audit.NewRunLog(config.ExpandPath(cfg.AuditLogDir))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = runLog.Close() }()

	var approver service.Approver
	var console *cli.Approver
	if autoApprove {
		approver = cli.AutoApprover{}
	} else {
		console = cli.NewApprover(os.Stdin, os.Stdout)
		approver = console
	}

	eng := engine.New(store, approver, runLog, engine.Config{
		Matching: match.Config{
			Threshold:           cfg.SimilarityThreshold,
			CodeConflictPenalty: cfg.CodeConflictPenalty,
		},
	})

	slog.Info("Starting reconciliation run",
		"input_dir", inputDir,
		"force", force,
		"auto_approve", autoApprove,
		"audit_log", runLog.Path)

	summary, runErr := eng.Run(ctx, inputDir, force)
	if console != nil {
		console.ShowSummary(summary)
	} else {
		slog.Info("Run complete",
			"documents_processed", summary.DocumentsProcessed,
			"documents_skipped", summary.DocumentsSkipped,
			"sections_processed", summary.SectionsProcessed,
			"sections_rejected", summary.SectionsRejected,
			"entities_created", summary.EntitiesCreated,
			"allocations_inserted", summary.AllocationsInserted,
			"allocations_overwritten", summary.AllocationsOverwritten)
	}
	if runErr != nil {
		if common.IsFatal(runErr) {
			slog.Error("Halting: registry hierarchy is inconsistent, nothing further will be committed",
				"error", runErr)
			return common.NewUserError("registry hierarchy is inconsistent, restore from a known-good database before rerunning", runErr)
		}
		return fmt.Errorf("reconciliation run failed: %w", runErr)
	}
	return nil
}
