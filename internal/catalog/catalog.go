// Package catalog reads product lists used to seed an empty kiosk.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/avtomat/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Items []entry `yaml:"items"`
}

// entry keeps the price as text so that "7500.50" is never routed through a
// float.
type entry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
	Image string `yaml:"image"`
}

// Parse decodes a YAML product list. Unknown fields, unparsable prices,
// invalid items and repeated ids are rejected.
func Parse(r io.Reader) ([]model.Item, error) {
	var f file
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if err == io.EOF {
			return []model.Item{}, nil
		}
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	items := make([]model.Item, 0, len(f.Items))
	seen := make(map[string]bool, len(f.Items))
	for i, e := range f.Items {
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): invalid price %q: %w", i+1, e.ID, e.Price, err)
		}
		item := model.Item{
			ID:       e.ID,
			Name:     e.Name,
			Price:    price,
			Stock:    e.Stock,
			ImageRef: e.Image,
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("item %d: duplicate id %q", i+1, item.ID)
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items, nil
}

// LoadFile parses the product list at path.
func LoadFile(path string) ([]model.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Default returns the built-in demo products.
func Default() []model.Item {
	items, err := Parse(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return items
}
