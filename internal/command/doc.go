// Package command implements the order dispatcher for the Item Sorter Container.
//
// The dispatcher takes the next order from the ledger, turns every pickable
// line into repeated robot picks paced by a fixed interval, skips bulk lines,
// emits events to the telemetry hub and writes audit records. One dispatch
// runs at a time; StartNext runs it in the background so callers never block
// on robot motion.
package command
