package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erazemk/avtomat/internal/db"
	"github.com/erazemk/avtomat/internal/store"
	"github.com/erazemk/avtomat/internal/vending"
)

// openMachine opens the product store and builds the engine on it. The
// caller closes the returned catalog.
func openMachine(ctx context.Context, opts *RootOptions) (*vending.Machine, *store.Catalog, error) {
	if err := opts.Config.EnsureDataDir(); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "cannot prepare data directory", err)
	}

	catalog := store.NewCatalog(opts.Config.InventoryPath())
	machine := vending.New(ctx, catalog)
	if res := machine.LoadResult(); res.Fallback() {
		slog.Warn("inventory store unreadable, starting with an empty inventory", "path", catalog.Path(), "error", res.Err)
	}
	return machine, catalog, nil
}

// openAdminDB opens the operators and settings database.
func openAdminDB(opts *RootOptions) (*sql.DB, error) {
	if err := opts.Config.EnsureDataDir(); err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot prepare data directory", err)
	}

	database, err := db.Open(opts.Config.AdminDBPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open admin database", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, WrapExitError(ExitCommandError, "cannot prepare admin database", err)
	}
	return database, nil
}

// engineFailure turns an engine error into an ExitError. A change that was
// not saved is a failure here: the process exits and the change is lost.
func engineFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vending.ErrNotPersisted) {
		return WrapExitError(ExitFailure, "the change could not be saved", err)
	}
	return NewExitError(ExitFailure, vending.Message(err))
}

func closeCatalog(c *store.Catalog) {
	if err := c.Close(); err != nil {
		slog.Warn("closing inventory store", "error", fmt.Sprint(err))
	}
}
