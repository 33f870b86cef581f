package ledger

import (
	"sort"
	"sync"
)

// Customer records who created which orders. It has no effect on dispatch.
type Customer struct {
	Name string

	mu     sync.Mutex
	orders []*Order
}

// NewCustomer creates a customer with no order history.
func NewCustomer(name string) *Customer {
	return &Customer{Name: name}
}

// OrderQueue accepts orders for dispatch. *Ledger implements it.
type OrderQueue interface {
	QueueOrder(order *Order)
}

// CreateOrder stores order in the customer history and queues it on q.
func (c *Customer) CreateOrder(q OrderQueue, order *Order) {
	if order.Customer == "" {
		order.Customer = c.Name
	}

	c.mu.Lock()
	c.orders = append(c.orders, order)
	c.mu.Unlock()

	q.QueueOrder(order)
}

// Orders returns the customer's orders in creation order.
func (c *Customer) Orders() []*Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Order, len(c.orders))
	copy(out, c.orders)
	return out
}

// Customers is a name-keyed registry of customers.
type Customers struct {
	mu    sync.Mutex
	byKey map[string]*Customer
}

// NewCustomers creates an empty customer registry.
func NewCustomers() *Customers {
	return &Customers{byKey: make(map[string]*Customer)}
}

// GetOrCreate returns the customer with name, creating it on first use.
func (r *Customers) GetOrCreate(name string) *Customer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.byKey[name]; ok {
		return c
	}
	c := NewCustomer(name)
	r.byKey[name] = c
	return c
}

// Get returns the customer with name.
func (r *Customers) Get(name string) (*Customer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byKey[name]
	return c, ok
}

// Names returns all customer names sorted alphabetically.
func (r *Customers) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.byKey))
	for name := range r.byKey {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
