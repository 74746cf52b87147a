package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openfiscal/fisc/internal/registry"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load a YAML registry seed file into the database",
		Long: `Load canonical entities from a YAML seed file. Hierarchy levels and
subordinate counts are derived from the parent references; the whole
hierarchy is validated before any entity is written.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seed, err := registry.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	count, err := registry.Install(ctx, store, seed)
	if err != nil {
		return fmt.Errorf("failed to install seed: %w", err)
	}

	slog.Info("Seeded canonical registry", "file", args[0], "entities", count)
	return nil
}
