package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfiscal/fisc/internal/cli"
	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/hierarchy"
	"github.com/openfiscal/fisc/internal/model"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Inspect the canonical entity registry",
	}

	cmd.AddCommand(entitiesListCmd())
	cmd.AddCommand(entitiesShowCmd())
	cmd.AddCommand(entitiesTreeCmd())

	return cmd
}

func entitiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all canonical entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entities, err := store.GetAllEntities(ctx)
			if err != nil {
				return fmt.Errorf("failed to load entities: %w", err)
			}
			sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })

			fmt.Println(cli.FormatTitle("Canonical Entities")) //nolint:forbidigo // User-facing output
			for i := range entities {
				e := &entities[i]
				code := e.OrganizationCode
				if code == "" {
					code = "----"
				}
				fmt.Printf("  %s  %s (level %d, %s)\n", code, e.Name, e.OrgLevel, e.BudgetStatus) //nolint:forbidigo // User-facing output
			}
			fmt.Printf("\n%d entities\n", len(entities)) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func entitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME|CODE",
		Short: "Show one entity's registry record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entity, err := store.GetEntity(ctx, args[0])
			if errors.Is(err, common.ErrNotFound) {
				entity, err = store.GetEntityByCode(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("entity %q: %w", args[0], err)
			}

			fmt.Println(cli.FormatTitle(entity.Name))                          //nolint:forbidigo // User-facing output
			fmt.Printf("  Canonical name: %s\n", entity.CanonicalName)         //nolint:forbidigo // User-facing output
			fmt.Printf("  Organization code: %s\n", entity.OrganizationCode)   //nolint:forbidigo // User-facing output
			fmt.Printf("  Parent agency: %s\n", entity.ParentAgency)           //nolint:forbidigo // User-facing output
			fmt.Printf("  Budget status: %s\n", entity.BudgetStatus)           //nolint:forbidigo // User-facing output
			fmt.Printf("  Level: %d\n", entity.OrgLevel)                       //nolint:forbidigo // User-facing output
			fmt.Printf("  Subordinates: %d\n", entity.SubordinateCount)        //nolint:forbidigo // User-facing output
			fmt.Printf("  Aliases: %s\n", strings.Join(entity.Aliases, "; ")) //nolint:forbidigo // User-facing output
			if entity.Description != "" {
				fmt.Printf("  Description: %s\n", entity.Description) //nolint:forbidigo // User-facing output
			}
			return nil
		},
	}
}

func entitiesTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the entity hierarchy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entities, err := store.GetAllEntities(ctx)
			if err != nil {
				return fmt.Errorf("failed to load entities: %w", err)
			}

			refs := make([]*model.CanonicalEntity, 0, len(entities))
			for i := range entities {
				refs = append(refs, &entities[i])
			}
			tree := hierarchy.Build(refs)
			if err := tree.Validate(); err != nil {
				return err
			}

			tree.Walk(model.RootEntityName, func(n *hierarchy.Node) {
				indent := strings.Repeat("  ", n.Level)
				suffix := ""
				if n.SubordinateCount > 0 {
					suffix = fmt.Sprintf(" (%d subordinates)", n.SubordinateCount)
				}
				fmt.Printf("%s%s%s\n", indent, n.Name, suffix) //nolint:forbidigo // User-facing output
			})
			return nil
		},
	}
}
