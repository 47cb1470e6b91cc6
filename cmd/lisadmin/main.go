// Command lisadmin performs operator tasks against the configured database:
// seeding the test catalog, creating accounts and running maintenance jobs once.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/openlis/lis-api/internal/app"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/users"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lisadmin",
		Short:         "Administrative tasks for the LIS API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(seedCatalogCmd(), createUserCmd(), runJobsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open loads configuration and connects the same backends the API uses.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitWithFormat(cfg.Log.Level, "console")
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI is not set; changes only live for the duration of this command")
	}
	return app.New(ctx, cfg)
}

func seedCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Create catalog tests that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			items := defaultCatalog()
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				items = nil
				if err := json.Unmarshal(raw, &items); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}

			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			created, skipped, err := seedCatalog(ctx, a.Services.Catalog, items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d created, %d already present\n", created, skipped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "JSON array of catalog tests (default: built-in panel)")
	return cmd
}

func createUserCmd() *cobra.Command {
	var in users.CreateInput
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("LIS_USER_PASSWORD")
			}
			if in.Password == "" {
				return errors.New("--password or LIS_USER_PASSWORD is required")
			}
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			u, err := a.Services.Users.Create(models.WithPrincipal(ctx, models.Principal{UserID: "lisadmin", Role: models.RoleAdmin}), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Username, u.Role, u.ID.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Role, "role", models.RoleTechnician, "role")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run-jobs [no_show_sweep|inventory_sweep|all]",
		Short:     "Run maintenance jobs once",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"no_show_sweep", "inventory_sweep", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) == 1 {
				name = args[0]
			}
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return a.Services.Jobs.RunOnce(ctx, name)
		},
	}
}
