package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openfiscal/fisc/internal/config"
	"github.com/openfiscal/fisc/internal/export"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reconciled data to CSV files",
		Long: `Write the canonical registry, programs, funds, and the allocation
ledger to CSV files for downstream publication.`,
		RunE: runExport,
	}

	cmd.Flags().String("out", "", "Output directory (overrides config)")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	outDir, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = cfg.ExportDir
	}
	outDir = config.ExpandPath(outDir)

	ctx := cmd.Context()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	files, err := export.New(store).ExportAll(ctx, outDir)
	if err != nil {
		return err
	}

	slog.Info("✅ Export complete", "dir", outDir, "files", files)
	return nil
}
