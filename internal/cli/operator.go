package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/auth"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/store"
)

// NewOperatorCommand groups the staff account subcommands.
func NewOperatorCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage kiosk staff accounts",
	}
	cmd.AddCommand(newOperatorAddCommand(opts))
	cmd.AddCommand(newOperatorListCommand(opts))
	return cmd
}

func newOperatorAddCommand(opts *RootOptions) *cobra.Command {
	var (
		role     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator",
		Long:  "Create an operator. Without --password a random password is generated and printed once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.ValidRole(role) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid role %q (use %s or %s)", role, model.RoleAdmin, model.RoleAttendant))
			}

			generated := password == ""
			if generated {
				var err error
				if password, err = auth.GeneratePassword(16); err != nil {
					return WrapExitError(ExitFailure, "cannot generate password", err)
				}
			}
			if err := model.ValidatePassword(password); err != nil {
				return WrapExitError(ExitCommandError, "invalid password", err)
			}

			database, err := openAdminDB(opts)
			if err != nil {
				return err
			}
			defer database.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return WrapExitError(ExitFailure, "cannot hash password", err)
			}
			op, err := store.CreateOperator(cmd.Context(), database, args[0], hash, role)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("cannot create operator %q", args[0]), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Operator created: %s (%s)\n", op.Username, op.Role)
			if generated {
				fmt.Fprintf(out, "  Password: %s\n", password)
				fmt.Fprintln(out, "Save this password, it cannot be recovered.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", model.RoleAttendant, "operator role (admin|attendant)")
	cmd.Flags().StringVar(&password, "password", "", "password (default: generated)")
	return cmd
}

func newOperatorListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openAdminDB(opts)
			if err != nil {
				return err
			}
			defer database.Close()

			ops, err := store.ListOperators(cmd.Context(), database)
			if err != nil {
				return WrapExitError(ExitFailure, "cannot list operators", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tCREATED")
			for _, op := range ops {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", op.ID, op.Username, op.Role, op.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}
