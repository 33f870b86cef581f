// Package ledger implements the order ledger for the Item Sorter Container.
//
// The ledger keeps the FIFO queue of pending orders, the list of processed
// orders and the running revenue total. Moving an order from queued to
// processed and crediting its total price happen under a single lock, so the
// revenue always equals the sum of processed order totals.
//
// Processing an order is bookkeeping only; physical fulfilment is driven by
// the dispatcher, which records the outcome back as a fulfilment status.
package ledger
