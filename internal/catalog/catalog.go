package catalog

import (
	"errors"
	"fmt"
	"sync"
)

// ErrItemNotFound indicates the requested item is not in the catalog.
var ErrItemNotFound = errors.New("ITEM_NOT_FOUND")

// ErrDuplicateItem indicates an item with the same name is already registered.
var ErrDuplicateItem = errors.New("DUPLICATE_ITEM")

// Catalog is the registry of items available for ordering.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]*Item
	order []string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		items: make(map[string]*Item),
	}
}

// Add registers an item under its name.
func (c *Catalog) Add(item *Item) error {
	if item == nil || item.Name == "" {
		return fmt.Errorf("item name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[item.Name]; exists {
		return fmt.Errorf("item %s: %w", item.Name, ErrDuplicateItem)
	}

	c.items[item.Name] = item
	c.order = append(c.order, item.Name)
	return nil
}

// Get returns the item registered under name.
func (c *Catalog) Get(name string) (*Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[name]
	if !exists {
		return nil, fmt.Errorf("item %s: %w", name, ErrItemNotFound)
	}
	return item, nil
}

// List returns all items in registration order.
func (c *Catalog) List() []*Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items := make([]*Item, 0, len(c.order))
	for _, name := range c.order {
		items = append(items, c.items[name])
	}
	return items
}

// Len returns the number of registered items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
