// Package api implements the HTTP API gateway for the Item Sorter Container.
//
// The gateway exposes the catalog, the order ledger and the dispatcher over
// HTTP/JSON and streams dispatch telemetry over SSE. Every JSON response uses
// the envelope {result, data, code, message, details, correlationId}.
package api
