// Package menu holds the canteen catalog: item id to unit price. The catalog
// is loaded once at startup and never changes while the server runs.
package menu

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"canteen-orders-api/apperrors"
	"canteen-orders-api/models"

	"gopkg.in/yaml.v3"
)

//go:embed default_menu.yaml
var defaultMenu []byte

type menuFile struct {
	Items []models.MenuItem `yaml:"items"`
}

// Catalog is an immutable, concurrency-safe menu
type Catalog struct {
	items []models.MenuItem
	byID  map[string]models.MenuItem
}

// Selection is a priced, validated list of lines
type Selection struct {
	Lines []models.OrderLine `json:"lines"`
	Total int64              `json:"total"`
}

// New validates items and builds a catalog
func New(items []models.MenuItem) (*Catalog, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("menu has no items")
	}
	c := &Catalog{
		items: make([]models.MenuItem, 0, len(items)),
		byID:  make(map[string]models.MenuItem, len(items)),
	}
	for i, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			return nil, fmt.Errorf("menu item %d: id is required", i)
		}
		if it.UnitPrice < 0 {
			return nil, fmt.Errorf("menu item %q: unit_price must not be negative", it.ID)
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, fmt.Errorf("menu item %q: duplicate id", it.ID)
		}
		if it.Name == "" {
			it.Name = it.ID
		}
		c.items = append(c.items, it)
		c.byID[it.ID] = it
	}
	return c, nil
}

// Parse reads a YAML menu document
func Parse(data []byte) (*Catalog, error) {
	var f menuFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	return New(f.Items)
}

// Load reads the menu at path, or the built-in menu when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultMenu)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	return Parse(data)
}

// Item looks up a single entry
func (c *Catalog) Item(id string) (models.MenuItem, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Items returns the menu in file order
func (c *Catalog) Items() []models.MenuItem {
	out := make([]models.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Price validates lines against the catalog and prices them. With coupon
// set, every priced line is free; zero-price lines are left unmarked.
func (c *Catalog) Price(lines []models.Line, coupon bool) (Selection, error) {
	if len(lines) == 0 {
		return Selection{}, apperrors.ErrEmptySelection
	}
	sel := Selection{Lines: make([]models.OrderLine, 0, len(lines))}
	for i, l := range lines {
		it, ok := c.byID[l.ItemID]
		if !ok {
			return Selection{}, apperrors.WithMetadata(apperrors.CodeInvalidItem,
				"unknown menu item "+strconv.Quote(l.ItemID),
				map[string]string{"item_id": l.ItemID})
		}
		if l.Quantity < 1 {
			return Selection{}, apperrors.WithMetadata(apperrors.CodeInvalidItem,
				"quantity must be at least 1 for "+strconv.Quote(l.ItemID),
				map[string]string{"item_id": l.ItemID, "quantity": strconv.Itoa(l.Quantity)})
		}
		line := models.OrderLine{
			Position:  i,
			ItemID:    it.ID,
			Name:      it.Name,
			Quantity:  l.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.UnitPrice * int64(l.Quantity),
		}
		if coupon && it.UnitPrice > 0 {
			line.IsFree = true
			line.LineTotal = 0
		}
		sel.Total += line.LineTotal
		sel.Lines = append(sel.Lines, line)
	}
	return sel, nil
}
