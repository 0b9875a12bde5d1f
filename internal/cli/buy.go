package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/receipt"
)

// NewBuyCommand sells items from the command line and prints receipts.
func NewBuyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id>...",
		Short: "Buy one unit of each given product",
		Long: `Buy one unit of each given product, in order, and print a receipt for
each sale followed by a summary. Sale history lasts only for this command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, catalog, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(catalog)

			out := cmd.OutOrStdout()
			var failed error
			for _, id := range args {
				sale, buyErr := machine.Purchase(cmd.Context(), id)
				if sale.ID == "" {
					failed = engineFailure(buyErr)
					fmt.Fprintf(out, "%s: %s\n", id, failed)
					continue
				}
				if err := receipt.Render(out, sale); err != nil {
					return err
				}
				fmt.Fprintln(out)
				if buyErr != nil {
					failed = engineFailure(buyErr)
				}
			}

			sum := machine.Summary()
			fmt.Fprintf(out, "%d of %d purchases succeeded, revenue %s\n", sum.Succeeded, len(args), receipt.Rupiah(sum.Revenue))
			return failed
		},
	}
}
