// Package audit implements the audit logger for the Item Sorter Container.
//
// Every order intake and dispatch action is appended as one JSON line with
// actor, order ID, parameters, outcome, code and latency. The file is rotated
// by size and age.
package audit
