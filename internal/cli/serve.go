package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/avtomat/internal/api"
	"github.com/erazemk/avtomat/internal/auth"
	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/store"
	"github.com/erazemk/avtomat/internal/vending"
)

// NewServeCommand runs the kiosk HTTP API.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string
	var noSeed bool

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Run the kiosk API server",
		Annotations: map[string]string{annotationLogLevel: "info"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.Config.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			k, err := openKiosk(ctx, opts, cmd.OutOrStdout(), !noSeed)
			if err != nil {
				return err
			}
			defer k.Close()

			return k.Serve(ctx, opts.Config.Addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address (env AVTOMAT_ADDR)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "do not add demo products to an empty inventory")
	return cmd
}

// kiosk is everything a running server holds open.
type kiosk struct {
	db      *sql.DB
	catalog *store.Catalog
	machine *vending.Machine
	handler http.Handler
}

// openKiosk opens both databases, bootstraps the first admin, seeds demo
// products into an empty inventory and builds the HTTP handler.
func openKiosk(ctx context.Context, opts *RootOptions, out io.Writer, seed bool) (*kiosk, error) {
	database, err := openAdminDB(opts)
	if err != nil {
		return nil, err
	}

	if err := bootstrapAdmin(ctx, database, opts.Config.AdminUser, out); err != nil {
		database.Close()
		return nil, WrapExitError(ExitCommandError, "cannot create admin operator", err)
	}

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		database.Close()
		return nil, WrapExitError(ExitCommandError, "cannot load token secret", err)
	}

	if n, err := store.PurgeExpiredTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge expired token revocations", "error", err)
	} else if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}

	machine, catalog, err := openMachine(ctx, opts)
	if err != nil {
		database.Close()
		return nil, err
	}

	if seed && machine.ItemCount() == 0 {
		if _, err := seedDemo(ctx, machine, database); err != nil {
			// Seeded items stay in memory even when they could not be saved.
			slog.Error("seeding demo products", "error", err)
		}
	}

	slog.Info("kiosk ready",
		"inventory", catalog.Path(),
		"items", machine.ItemCount(),
		"load", machine.LoadResult().Status.String(),
	)

	router := api.NewRouter(database, machine, jwtSecret, opts.Config.MediaPath())
	return &kiosk{
		db:      database,
		catalog: catalog,
		machine: machine,
		handler: api.LoggingMiddleware(router),
	}, nil
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (k *kiosk) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           k.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server error", err)
	}

	slog.Info("server stopped, closing stores")
	return nil
}

// Close releases both databases.
func (k *kiosk) Close() {
	closeCatalog(k.catalog)
	if err := k.db.Close(); err != nil {
		slog.Warn("closing admin database", "error", err)
	}
}

// bootstrapAdmin creates the first admin operator when none exist and
// prints its generated password.
func bootstrapAdmin(ctx context.Context, database *sql.DB, username string, out io.Writer) error {
	n, err := store.CountOperators(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateOperator(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return err
	}

	fmt.Fprintln(out, "Admin account created:")
	fmt.Fprintf(out, "  Username: %s\n", username)
	fmt.Fprintf(out, "  Password: %s\n", password)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Save this password, it cannot be recovered.")
	fmt.Fprintln(out, "The admin can change it after logging in.")
	fmt.Fprintln(out)
	return nil
}
