// Package vending owns the kiosk inventory and sale history. Machine is the
// only component allowed to mutate either; every mutation is written through
// to the product store before the call returns.
package vending

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/avtomat/internal/model"
	"github.com/erazemk/avtomat/internal/store"
)

// SaleIDPrefix starts every generated sale id.
const SaleIDPrefix = "TRX-"

// Store is the durable home of the product list.
type Store interface {
	Save(ctx context.Context, items []model.Item) error
	Load(ctx context.Context) ([]model.Item, store.LoadResult)
}

// Machine is the inventory and sales engine of one kiosk.
type Machine struct {
	mu sync.Mutex

	store Store
	items []model.Item
	index map[string]int
	sales []model.Sale

	now    func() time.Time
	suffix func() string
	loaded store.LoadResult
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used to stamp sales.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithSaleIDSuffix overrides the random part of generated sale ids.
func WithSaleIDSuffix(suffix func() string) Option {
	return func(m *Machine) { m.suffix = suffix }
}

// New creates a machine and adopts whatever inventory the store holds.
// Sale history always starts empty.
func New(ctx context.Context, s Store, opts ...Option) *Machine {
	m := &Machine{
		store:  s,
		index:  map[string]int{},
		now:    time.Now,
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(m)
	}

	items, res := s.Load(ctx)
	m.loaded = res
	if len(items) > 0 {
		m.replaceItems(items)
		slog.Info("inventory adopted from store", "items", len(items))
	} else {
		slog.Info("starting with empty inventory", "load", res.Status.String())
	}
	return m
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// LoadResult reports how the initial inventory was obtained. Callers use it
// to warn when a corrupt store was replaced by an empty inventory.
func (m *Machine) LoadResult() store.LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// AddItem adds a new product. The id must not already be in use.
func (m *Machine) AddItem(ctx context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, ok := m.index[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}

	m.items = append(m.items, item)
	m.index[item.ID] = len(m.items) - 1
	slog.Debug("item added", "id", item.ID, "stock", item.Stock)

	return m.persist(ctx)
}

// RemoveItem deletes a product. It returns false if no product has the id.
// Recorded sales keep their own snapshot and are unaffected.
func (m *Machine) RemoveItem(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return false, nil
	}

	m.items = slices.Delete(m.items, i, i+1)
	m.reindex()
	slog.Debug("item removed", "id", id)

	return true, m.persist(ctx)
}

// UpdateItem overwrites every field of the product with the given id.
// data.ID may differ from id to rename the product, as long as the new id is
// not used by another product.
func (m *Machine) UpdateItem(ctx context.Context, id string, data model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := data.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if data.ID != id {
		if _, taken := m.index[data.ID]; taken {
			return fmt.Errorf("%w: %s", ErrDuplicateID, data.ID)
		}
	}

	m.items[i] = data
	if data.ID != id {
		m.reindex()
		slog.Debug("item renamed", "from", id, "to", data.ID)
	}
	slog.Debug("item updated", "id", data.ID, "stock", data.Stock)

	return m.persist(ctx)
}

// SetItemImage changes only the image reference of a product.
func (m *Machine) SetItemImage(ctx context.Context, id, ref string) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.items[i].ImageRef = ref
	slog.Debug("item image set", "id", id, "ref", ref)

	return m.items[i], m.persist(ctx)
}

// FindItem returns a copy of the product with the given id.
func (m *Machine) FindItem(id string) (model.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return model.Item{}, false
	}
	return m.items[i], true
}

// ListItems returns a copy of the inventory in insertion order.
func (m *Machine) ListItems() []model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.items)
}

// ItemCount returns the number of distinct products.
func (m *Machine) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

// Purchase sells one unit of the product with the given id. The id is
// resolved against the live inventory, so a stale caller copy never decides
// availability. On success the stock is decremented, a SUCCEEDED sale is
// appended to the history and the inventory is persisted.
func (m *Machine) Purchase(ctx context.Context, id string) (model.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		return model.Sale{}, fmt.Errorf("%w: item id required", ErrInvalidInput)
	}

	i, ok := m.index[id]
	if !ok {
		return model.Sale{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item := &m.items[i]
	if !item.InStock() {
		return model.Sale{}, fmt.Errorf("%w: %s", ErrOutOfStock, id)
	}

	snapshot := *item
	if err := item.Decrement(1); err != nil {
		return model.Sale{}, fmt.Errorf("%w: %w", ErrOutOfStock, err)
	}

	at := m.now()
	sale := model.NewSale(m.saleID(at), snapshot, 1, at)
	if err := sale.Complete(); err != nil {
		item.Stock = snapshot.Stock
		return model.Sale{}, err
	}
	m.sales = append(m.sales, sale)
	slog.Debug("purchase recorded", "sale", sale.ID, "item", id, "stock_left", item.Stock)

	return sale, m.persist(ctx)
}

// saleID formats the creation instant to the millisecond and appends a
// random suffix so two sales in the same millisecond still differ.
func (m *Machine) saleID(at time.Time) string {
	return fmt.Sprintf("%s%s%03d-%s",
		SaleIDPrefix, at.Format("20060102150405"), at.Nanosecond()/int(time.Millisecond), m.suffix())
}

// ListSales returns a copy of the sale history, oldest first.
func (m *Machine) ListSales() []model.Sale {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.sales)
}

// FindSale returns the sale with the given id.
func (m *Machine) FindSale(id string) (model.Sale, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sales {
		if s.ID == id {
			return s, true
		}
	}
	return model.Sale{}, false
}

// SaleCount returns the number of recorded sales.
func (m *Machine) SaleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sales)
}

// ClearSales empties the sale history. Inventory is untouched.
func (m *Machine) ClearSales() {
	m.mu.Lock()
	defer m.mu.Unlock()

	slog.Debug("sale history cleared", "sales", len(m.sales))
	m.sales = nil
}

// SalesSummary aggregates the sale history.
type SalesSummary struct {
	Sales     int             `json:"sales"`
	Succeeded int             `json:"succeeded"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Summary counts sales and sums the revenue of succeeded ones.
func (m *Machine) Summary() SalesSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := SalesSummary{Sales: len(m.sales), Revenue: decimal.Zero}
	for _, s := range m.sales {
		if s.Status != model.SaleSucceeded {
			continue
		}
		sum.Succeeded++
		sum.Revenue = sum.Revenue.Add(s.Total())
	}
	return sum
}

// Reload replaces the inventory with the store's contents. If the store
// cannot be read the current inventory is kept and the failure is reported.
func (m *Machine) Reload(ctx context.Context) store.LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, res := m.store.Load(ctx)
	if res.Status == store.LoadFailed {
		slog.Warn("reload failed, keeping current inventory", "error", res.Err)
		return res
	}
	m.replaceItems(items)
	return res
}

// Seed adds items only when the inventory is empty, and returns how many
// were added. Either all items are added or none.
func (m *Machine) Seed(ctx context.Context, items []model.Item) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) > 0 || len(items) == 0 {
		return 0, nil
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidInput, item.ID, err)
		}
		if seen[item.ID] {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = true
	}

	m.replaceItems(items)
	slog.Info("inventory seeded", "items", len(items))
	return len(items), m.persist(ctx)
}

func (m *Machine) replaceItems(items []model.Item) {
	m.items = slices.Clone(items)
	m.reindex()
}

func (m *Machine) reindex() {
	m.index = make(map[string]int, len(m.items))
	for i, item := range m.items {
		m.index[item.ID] = i
	}
}

// persist writes the full inventory. The in-memory change is kept even if
// the write fails.
func (m *Machine) persist(ctx context.Context) error {
	if err := m.store.Save(ctx, slices.Clone(m.items)); err != nil {
		slog.Error("inventory change not persisted", "error", err)
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return nil
}
