package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/audit"
	"github.com/cam-andersen/InventorySystemV3/internal/auth"
	"github.com/cam-andersen/InventorySystemV3/internal/command"
	"github.com/cam-andersen/InventorySystemV3/internal/ledger"
)

const apiV1 = "/api/v1"

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	mux.HandleFunc(apiV1+"/catalog", s.protect(auth.ScopeRead, s.handleCatalog))
	mux.HandleFunc(apiV1+"/orders", s.handleOrders)
	mux.HandleFunc(apiV1+"/orders/next", s.protect(auth.ScopeDispatch, s.handleProcessNext))
	mux.HandleFunc(apiV1+"/orders/{id}", s.protect(auth.ScopeRead, s.handleOrderByID))
	mux.HandleFunc(apiV1+"/dispatch", s.protect(auth.ScopeRead, s.handleDispatchStatus))
	mux.HandleFunc(apiV1+"/telemetry", s.protect(auth.ScopeTelemetry, s.handleTelemetry))
}

func (s *Server) protect(scope string, h http.HandlerFunc) http.HandlerFunc {
	return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(scope)(h))
}

// handleOrders routes /orders by method: reading needs read, creating needs dispatch.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.protect(auth.ScopeRead, s.handleListOrders)(w, r)
	case http.MethodPost:
		s.protect(auth.ScopeDispatch, s.handleCreateOrder)(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleCatalog handles GET /catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	WriteSuccess(w, map[string]interface{}{"items": s.catalog.List()})
}

// handleListOrders handles GET /orders
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.ledger.Snapshot())
}

type createOrderLine struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
}

type createOrderRequest struct {
	Customer string            `json:"customer"`
	Lines    []createOrderLine `json:"lines"`
}

// handleCreateOrder handles POST /orders
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		WriteAPIError(w, err)
		return
	}

	lines, err := s.resolveLines(req)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	customer := s.customers.GetOrCreate(req.Customer)
	order := s.ledger.NewOrder(customer.Name, lines...)
	customer.CreateOrder(s.ledger, order)

	ctx := actorContext(r)
	if s.auditLogger != nil {
		s.auditLogger.LogOrderAction(ctx, "createOrder", order.ID, map[string]interface{}{
			"customer": req.Customer,
			"lines":    req.Lines,
		}, nil)
	}

	s.logger.Info("order queued",
		zap.String("order", order.ID),
		zap.String("customer", customer.Name),
		zap.Int("lines", len(lines)))

	view, _ := s.ledger.Lookup(order.ID)
	WriteSuccessStatus(w, http.StatusCreated, view)
}

func (s *Server) resolveLines(req createOrderRequest) ([]ledger.OrderLine, error) {
	if strings.TrimSpace(req.Customer) == "" {
		return nil, badRequest("customer is required")
	}
	if len(req.Lines) == 0 {
		return nil, badRequest("at least one order line is required")
	}

	lines := make([]ledger.OrderLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		if math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) {
			return nil, badRequest("lines[%d]: quantity must be finite", i)
		}
		item, err := s.catalog.Get(l.Item)
		if err != nil {
			return nil, NewAPIError("NOT_FOUND", "Item not found in catalog", http.StatusNotFound,
				map[string]interface{}{"line": i, "item": l.Item})
		}
		lines = append(lines, ledger.NewOrderLine(item, l.Quantity))
	}
	return lines, nil
}

// handleOrderByID handles GET /orders/{id}
func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	view, ok := s.ledger.Lookup(r.PathValue("id"))
	if !ok {
		WriteAPIError(w, command.ErrNotFound)
		return
	}
	WriteSuccess(w, view)
}

// handleProcessNext handles POST /orders/next
func (s *Server) handleProcessNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	// The dispatch outlives this request, so it runs under the server context.
	ctx := s.baseCtx
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		ctx = audit.WithActor(ctx, claims.Subject)
	}

	if err := s.dispatcher.StartNext(ctx); err != nil {
		if errors.Is(err, command.ErrBusy) {
			st := s.dispatcher.Status()
			WriteError(w, http.StatusConflict, "BUSY", "A dispatch is already in progress",
				map[string]interface{}{"currentOrderId": st.CurrentOrderID})
			return
		}
		WriteAPIError(w, err)
		return
	}

	WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"state": command.StateDispatching.String()})
}

// handleDispatchStatus handles GET /dispatch
func (s *Server) handleDispatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	WriteSuccess(w, s.dispatcher.Status())
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		s.logger.Warn("telemetry subscribe failed", zap.Error(err))
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Failed to subscribe to telemetry stream", nil)
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	subsystems := map[string]bool{
		"catalog":    s.catalog != nil,
		"ledger":     s.ledger != nil,
		"dispatcher": s.dispatcher != nil,
		"telemetry":  s.telemetryHub != nil,
	}

	status := "ok"
	for _, up := range subsystems {
		if !up {
			status = "degraded"
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"uptimeSec":  time.Since(s.startTime).Seconds(),
		"version":    Version,
		"subsystems": subsystems,
		"auth":       s.authMiddleware.Enabled(),
	}

	if status != "ok" {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
		return
	}
	WriteSuccess(w, health)
}

// decodeStrict decodes one JSON object, rejecting unknown fields and trailing data.
func decodeStrict(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("Malformed JSON or unknown fields")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return badRequest("Trailing data after JSON object")
	}
	return nil
}

func actorContext(r *http.Request) context.Context {
	ctx := r.Context()
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		return audit.WithActor(ctx, claims.Subject)
	}
	return ctx
}
