package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/config"
)

// Hub event types. Domain events are named by their publishers.
const (
	EventReady     = "ready"
	EventHeartbeat = "heartbeat"
)

// Event represents a telemetry event with SSE formatting.
type Event struct {
	ID    int64                  `json:"id,omitempty"`
	Type  string                 `json:"type"`
	Data  map[string]interface{} `json:"data"`
	Order string                 `json:"order,omitempty"`
	Time  time.Time              `json:"ts"`
}

// matches reports whether a client following order should see e.
// Events without an order (heartbeat, noWork) go to everyone.
func (e Event) matches(order string) bool {
	return order == "" || e.Order == "" || e.Order == order
}

// Client represents an SSE client connection.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Order   string
	Events  chan Event
	mu      sync.Mutex // Protect Writer access

	replayedTo int64
}

// SnapshotFunc supplies the state sent in the ready event.
type SnapshotFunc func() map[string]interface{}

// Hub manages SSE telemetry distribution.
//
// Lock ordering: h.mu before EventBuffer.mu before Client.mu.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	lastID  atomic.Int64

	buffer   *EventBuffer
	config   *config.TimingConfig
	snapshot SnapshotFunc
	logger   *zap.Logger

	stopHeartbeat chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithSnapshot sets the ready-event snapshot supplier.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// NewHub creates a new telemetry hub with the specified configuration.
func NewHub(timingConfig *config.TimingConfig, opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		buffer:  NewEventBuffer(timingConfig.EventBufferSize, timingConfig.EventBufferRetention),
		config:  timingConfig,
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe streams events to w until ctx ends or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	select {
	case <-h.done:
		return fmt.Errorf("telemetry hub stopped")
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientCtx, cancel := context.WithCancel(ctx)

	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastEventID,
		Order:   r.URL.Query().Get("order"),
		Events:  make(chan Event, 100),
	}

	// Published events queue on client.Events until handleClient runs, so
	// ready and replay are always written first.
	h.mu.Lock()
	h.clients[client.ID] = client
	if len(h.clients) == 1 && h.stopHeartbeat == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	h.logger.Debug("telemetry client connected",
		zap.String("client", client.ID),
		zap.String("order", client.Order),
		zap.Int64("lastEventId", lastEventID))

	if lastEventID > 0 {
		if err := h.replayEvents(client, lastEventID); err != nil {
			h.unregisterClient(client.ID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	h.handleClient(client)
	return nil
}

// Publish assigns an ID, buffers the event and fans it out to clients.
func (h *Hub) Publish(event Event) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if event.ID == 0 {
		event.ID = h.lastID.Add(1)
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if event.Type != EventHeartbeat {
		h.buffer.AddEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if event.matches(client.Order) {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			h.logger.Warn("dropping event for slow client",
				zap.String("client", client.ID),
				zap.Int64("eventId", event.ID))
		}
	}

	return nil
}

// PublishOrder publishes an event about a specific order.
func (h *Hub) PublishOrder(orderID string, event Event) error {
	event.Order = orderID
	return h.Publish(event)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LastEventID returns the most recently assigned event ID.
func (h *Hub) LastEventID() int64 {
	return h.lastID.Load()
}

func (h *Hub) sendReadyEvent(client *Client) error {
	snapshot := map[string]interface{}{}
	if h.snapshot != nil {
		snapshot = h.snapshot()
	}

	return h.sendEventToClient(client, Event{
		Type: EventReady,
		Data: map[string]interface{}{
			"snapshot":    snapshot,
			"lastEventId": h.lastID.Load(),
		},
		Time: time.Now().UTC(),
	})
}

func (h *Hub) replayEvents(client *Client, lastEventID int64) error {
	for _, event := range h.buffer.GetEventsAfter(lastEventID) {
		if !event.matches(client.Order) {
			continue
		}
		if err := h.sendEventToClient(client, event); err != nil {
			return err
		}
		client.replayedTo = event.ID
	}
	return nil
}

// sendEventToClient writes one SSE frame and flushes it.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) handleClient(client *Client) {
	defer h.unregisterClient(client.ID)

	for {
		select {
		case <-client.Context.Done():
			return
		case <-h.done:
			return
		case event := <-client.Events:
			if event.ID <= client.replayedTo {
				continue // already replayed
			}
			if err := h.sendEventToClient(client, event); err != nil {
				h.logger.Debug("telemetry client write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// startHeartbeat must be called with h.mu held.
func (h *Hub) startHeartbeat() {
	stop := make(chan struct{})
	h.stopHeartbeat = stop

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		timer := time.NewTimer(h.nextHeartbeat())
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				h.sendHeartbeat()
				timer.Reset(h.nextHeartbeat())
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// nextHeartbeat returns the interval with uniform jitter in [-jitter, +jitter].
func (h *Hub) nextHeartbeat() time.Duration {
	interval := h.config.HeartbeatInterval
	jitter := h.config.HeartbeatJitter
	if jitter <= 0 {
		return interval
	}
	return interval - jitter + rand.N(2*jitter+1)
}

func (h *Hub) sendHeartbeat() {
	_ = h.Publish(Event{
		Type: EventHeartbeat,
		Data: map[string]interface{}{
			"ts": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Stop disconnects all clients and stops the heartbeat. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, client := range h.clients {
			client.Cancel()
		}
		h.clients = make(map[string]*Client)
		h.stopHeartbeat = nil
		h.mu.Unlock()

		h.wg.Wait()
	})
}

type bufferedEvent struct {
	event Event
	added time.Time
}

// EventBuffer is a bounded replay buffer that also drops events older than its retention.
type EventBuffer struct {
	mu        sync.RWMutex
	events    []bufferedEvent
	capacity  int
	retention time.Duration
	now       func() time.Time
}

// NewEventBuffer creates a buffer; zero retention keeps events until evicted by capacity.
func NewEventBuffer(capacity int, retention time.Duration) *EventBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventBuffer{
		events:    make([]bufferedEvent, 0, capacity),
		capacity:  capacity,
		retention: retention,
		now:       time.Now,
	}
}

// AddEvent adds an event to the buffer.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, bufferedEvent{event: event, added: b.now()})
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
	b.pruneLocked()
}

// GetEventsAfter returns retained events with ID greater than lastID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()

	var result []Event
	for _, be := range b.events {
		if be.event.ID > lastID {
			result = append(result, be.event)
		}
	}
	return result
}

func (b *EventBuffer) pruneLocked() {
	if b.retention <= 0 {
		return
	}
	cutoff := b.now().Add(-b.retention)
	i := 0
	for i < len(b.events) && b.events[i].added.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = append(b.events[:0], b.events[i:]...)
	}
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the current buffer size.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
