package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/avtomat/internal/db"
	"github.com/erazemk/avtomat/internal/model"
)

// ErrIO marks a failure to read or write the product store.
var ErrIO = errors.New("inventory store i/o failure")

// LoadStatus tells how a Load call obtained its result.
type LoadStatus int

const (
	// LoadOK means the store file was read successfully.
	LoadOK LoadStatus = iota
	// LoadMissing means no store file exists yet.
	LoadMissing
	// LoadFailed means the file exists but could not be read; the result
	// is empty.
	LoadFailed
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadMissing:
		return "missing"
	case LoadFailed:
		return "failed"
	}
	return fmt.Sprintf("LoadStatus(%d)", int(s))
}

// LoadResult describes the outcome of a Load.
type LoadResult struct {
	Status LoadStatus
	Count  int
	Err    error
}

// Fallback reports whether the caller got an empty inventory because the
// store could not be read.
func (r LoadResult) Fallback() bool {
	return r.Status == LoadFailed
}

// Catalog persists the full product list to a single SQLite file. Every Save
// replaces the previous snapshot inside one transaction. A Catalog is not
// safe for concurrent use.
type Catalog struct {
	path string
	db   *sqlx.DB

	// unreadable is set when the last Load failed. The next Save moves the
	// file aside instead of writing into it.
	unreadable bool
}

type itemRow struct {
	Position int    `db:"position"`
	ID       string `db:"id"`
	Name     string `db:"name"`
	Price    string `db:"price"`
	Stock    int    `db:"stock"`
	ImageRef string `db:"image_ref"`
}

// priceText keeps the scale of d, so 7500.50 is stored as written.
func priceText(d decimal.Decimal) string {
	return d.StringFixed(max(-d.Exponent(), 0))
}

// NewCatalog returns a catalog stored at path. Nothing is opened until the
// first Load or Save.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// Path returns the store file location.
func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) open() (*sqlx.DB, error) {
	if c.db != nil {
		return c.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := db.Open(c.path)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureInventorySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	// sqlx only uses the driver name to pick the bindvar style.
	c.db = sqlx.NewDb(conn, "sqlite3")
	return c.db, nil
}

// Save overwrites the stored product list with items.
func (c *Catalog) Save(ctx context.Context, items []model.Item) error {
	if c.unreadable {
		if err := c.quarantine(); err != nil {
			slog.Error("failed to move unreadable inventory store aside", "path", c.path, "error", err)
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	conn, err := c.open()
	if err != nil {
		slog.Error("failed to open inventory store", "path", c.path, "error", err)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := c.replace(ctx, conn, items); err != nil {
		slog.Error("failed to save inventory", "path", c.path, "error", err)
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	slog.Debug("inventory saved", "path", c.path, "items", len(items))
	return nil
}

func (c *Catalog) replace(ctx context.Context, conn *sqlx.DB, items []model.Item) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO items (position, id, name, price, stock, image_ref)
		 VALUES (:position, :id, :name, :price, :stock, :image_ref)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		row := itemRow{
			Position: i,
			ID:       item.ID,
			Name:     item.Name,
			Price:    priceText(item.Price),
			Stock:    item.Stock,
			ImageRef: item.ImageRef,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("inserting item %q: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing items: %w", err)
	}
	return nil
}

// Load reads the stored product list. It never fails: a missing file yields
// an empty list with LoadMissing, and an unreadable one yields an empty list
// with LoadFailed and the cause in Err.
func (c *Catalog) Load(ctx context.Context) ([]model.Item, LoadResult) {
	c.unreadable = false
	if !c.Exists() {
		c.closeDB()
		slog.Info("inventory store not found, starting empty", "path", c.path)
		return []model.Item{}, LoadResult{Status: LoadMissing}
	}

	items, err := c.read(ctx)
	if err != nil {
		// Drop the handle so a later Save reopens the file.
		c.closeDB()
		if ctx.Err() == nil {
			c.unreadable = true
		}
		slog.Error("failed to load inventory, starting empty", "path", c.path, "error", err)
		return []model.Item{}, LoadResult{Status: LoadFailed, Err: fmt.Errorf("%w: %w", ErrIO, err)}
	}

	slog.Info("inventory loaded", "path", c.path, "items", len(items))
	return items, LoadResult{Status: LoadOK, Count: len(items)}
}

func (c *Catalog) read(ctx context.Context) ([]model.Item, error) {
	conn, err := c.open()
	if err != nil {
		return nil, err
	}

	var rows []itemRow
	if err := conn.SelectContext(ctx, &rows,
		`SELECT position, id, name, price, stock, image_ref FROM items ORDER BY position`,
	); err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}

	items := make([]model.Item, 0, len(rows))
	for _, r := range rows {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("parsing price of %q: %w", r.ID, err)
		}
		items = append(items, model.Item{
			ID:       r.ID,
			Name:     r.Name,
			Price:    price,
			Stock:    r.Stock,
			ImageRef: r.ImageRef,
		})
	}
	return items, nil
}

// quarantine renames an unreadable store file so a fresh one can be
// created. The old file is kept for inspection.
func (c *Catalog) quarantine() error {
	c.closeDB()
	if !c.Exists() {
		c.unreadable = false
		return nil
	}

	aside := c.asideName(time.Now())
	if err := os.Rename(c.path, aside); err != nil {
		return fmt.Errorf("renaming unreadable store: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(c.path + suffix)
	}

	slog.Warn("unreadable inventory store moved aside", "path", c.path, "moved_to", aside)
	c.unreadable = false
	return nil
}

// asideName returns an unused quarantine path for the store file.
func (c *Catalog) asideName(now time.Time) string {
	base := fmt.Sprintf("%s.corrupt-%s", c.path, now.UTC().Format("20060102T150405.000Z"))
	aside := base
	for n := 1; ; n++ {
		if _, err := os.Lstat(aside); os.IsNotExist(err) {
			return aside
		}
		aside = fmt.Sprintf("%s-%d", base, n)
	}
}

// Exists reports whether the store file is present.
func (c *Catalog) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Delete removes the store file. It returns false if there was nothing to
// remove or removal failed.
func (c *Catalog) Delete() bool {
	c.closeDB()

	if !c.Exists() {
		return false
	}
	if err := os.Remove(c.path); err != nil {
		slog.Error("failed to delete inventory store", "path", c.path, "error", err)
		return false
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(c.path + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove sqlite side file", "path", c.path+suffix, "error", err)
		}
	}
	slog.Info("inventory store deleted", "path", c.path)
	return true
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Catalog) closeDB() {
	if err := c.Close(); err != nil {
		slog.Warn("closing inventory store", "path", c.path, "error", err)
	}
}
