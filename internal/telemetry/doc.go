// Package telemetry implements the telemetry hub for the Item Sorter Container.
//
// The hub fans dispatch and ledger events out to SSE clients, assigns
// monotonic event IDs and keeps a bounded, time-limited buffer so a client
// reconnecting with Last-Event-ID resumes without gaps. Clients may follow a
// single order with ?order=<id>.
package telemetry
