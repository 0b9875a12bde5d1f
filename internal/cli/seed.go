package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/catalog"
	"github.com/erazemk/avtomat/internal/store"
	"github.com/erazemk/avtomat/internal/vending"
)

// NewSeedCommand fills an empty inventory with demo or file-provided products.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty inventory with products",
		Long: `Fill an empty inventory with the built-in demo products, or with the
products listed in a YAML file. A non-empty inventory is left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := catalog.Default()
			if file != "" {
				var err error
				items, err = catalog.LoadFile(file)
				if err != nil {
					return WrapExitError(ExitCommandError, "cannot read catalog", err)
				}
			}

			machine, cat, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(cat)

			n, err := machine.Seed(cmd.Context(), items)
			if err != nil {
				return engineFailure(err)
			}
			if n == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Inventory already has %d products; nothing seeded.\n", machine.ItemCount())
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML product list (default: built-in demo products)")
	return cmd
}

// seedDemo seeds the built-in products into an empty inventory and records
// when it happened.
func seedDemo(ctx context.Context, machine *vending.Machine, database *sql.DB) (int, error) {
	n, err := machine.Seed(ctx, catalog.Default())
	if err != nil || n == 0 {
		return n, err
	}

	if err := store.SetSetting(ctx, database, store.SettingSeededAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("failed to record seeding time", "error", err)
	}
	slog.Info("demo products seeded", "items", n)
	return n, nil
}
