package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/imaging"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/receipt"
)

// NewItemsCommand groups the inventory subcommands.
func NewItemsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage the product inventory",
		Long: `Manage the product inventory stored in the data directory.

A running "avtomat serve" keeps its own copy in memory; call
POST /api/inventory/reload after editing the store from the command line.`,
	}

	cmd.AddCommand(newItemsListCommand(opts))
	cmd.AddCommand(newItemsAddCommand(opts))
	cmd.AddCommand(newItemsUpdateCommand(opts))
	cmd.AddCommand(newItemsRemoveCommand(opts))
	return cmd
}

func newItemsListCommand(opts *RootOptions) *cobra.Command {
	var available bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, catalog, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(catalog)

			items := machine.ListItems()
			if available {
				inStock := items[:0]
				for _, item := range items {
					if item.InStock() {
						inStock = append(inStock, item)
					}
				}
				items = inStock
			}
			return printItems(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().BoolVar(&available, "available", false, "only list products in stock")
	return cmd
}

func printItems(w io.Writer, items []model.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No products.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tIMAGE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", item.ID, item.Name, receipt.Rupiah(item.Price), item.Stock, item.ImageRef)
	}
	return tw.Flush()
}

func newItemsAddCommand(opts *RootOptions) *cobra.Command {
	var (
		price string
		stock int
		image string
	)

	cmd := &cobra.Command{
		Use:   "add <id> <name>",
		Short: "Add a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrice(price)
			if err != nil {
				return err
			}

			machine, catalog, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(catalog)

			item := model.Item{ID: args[0], Name: args[1], Price: p, Stock: stock, ImageRef: image}
			if err := machine.AddItem(cmd.Context(), item); err != nil {
				return engineFailure(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s).\n", item.ID, item.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&price, "price", "0", "unit price in rupiah")
	cmd.Flags().IntVar(&stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&image, "image", "", "image reference")
	return cmd
}

func newItemsUpdateCommand(opts *RootOptions) *cobra.Command {
	var (
		newID string
		name  string
		price string
		stock int
		image string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a product",
		Long:  "Change fields of a product. Only the flags given are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, catalog, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(catalog)

			id := args[0]
			item, ok := machine.FindItem(id)
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("no product with id %q", id))
			}
			old := item

			flags := cmd.Flags()
			if flags.Changed("id") {
				item.ID = newID
			}
			if flags.Changed("name") {
				item.Name = name
			}
			if flags.Changed("price") {
				p, err := parsePrice(price)
				if err != nil {
					return err
				}
				item.Price = p
			}
			if flags.Changed("stock") {
				item.Stock = stock
			}
			if flags.Changed("image") {
				item.ImageRef = image
			}

			if err := machine.UpdateItem(cmd.Context(), id, item); err != nil {
				return engineFailure(err)
			}

			media := opts.Config.MediaPath()
			switch {
			case item.ImageRef != old.ImageRef:
				removeImage(media, old.ImageRef)
			case item.ID != id:
				ref, err := imaging.Move(media, item.ImageRef, item.ID)
				if err != nil {
					return WrapExitError(ExitFailure, "moving product image", err)
				}
				if ref != item.ImageRef {
					if _, err := machine.SetItemImage(cmd.Context(), item.ID, ref); err != nil {
						return engineFailure(err)
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s.\n", item.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&newID, "id", "", "new product id")
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&price, "price", "", "unit price in rupiah")
	cmd.Flags().IntVar(&stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&image, "image", "", "image reference")
	return cmd
}

func newItemsRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a product",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, catalog, err := openMachine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeCatalog(catalog)

			old, _ := machine.FindItem(args[0])
			removed, err := machine.RemoveItem(cmd.Context(), args[0])
			if err != nil {
				return engineFailure(err)
			}
			if !removed {
				return NewExitError(ExitFailure, fmt.Sprintf("no product with id %q", args[0]))
			}
			removeImage(opts.Config.MediaPath(), old.ImageRef)

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
			return nil
		},
	}
}

func removeImage(dir, ref string) {
	if err := imaging.Remove(dir, ref); err != nil {
		slog.Warn("failed to remove unused image", "ref", ref, "error", err)
	}
}

func parsePrice(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid price %q", s), err)
	}
	return p, nil
}
