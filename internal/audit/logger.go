package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cam-andersen/InventorySystemV3/internal/config"
)

// FileName is the audit file inside the audit directory.
const FileName = "audit.jsonl"

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	OrderID   string                 `json:"orderId,omitempty"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
	Outcome   string                 `json:"outcome"`
	Code      string                 `json:"code"`
	LatencyMs int64                  `json:"latencyMs"`
}

type ctxKey int

const (
	actorKey ctxKey = iota
	paramsKey
)

// WithActor records who triggered the actions done under ctx.
func WithActor(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, actorKey, subject)
}

// WithParams attaches parameters logged with the next action.
func WithParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

// Logger implements the audit logging functionality.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
	now      func() time.Time
}

// NewLogger creates an audit logger writing to <dir>/audit.jsonl.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, FileName)
	out := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  false,
	}

	// Fail early on an unwritable directory rather than on the first action.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	_ = f.Close()

	return &Logger{
		filePath: filePath,
		out:      out,
		now:      time.Now,
	}, nil
}

// LogAction logs an audit record for a dispatch or intake action.
func (l *Logger) LogAction(ctx context.Context, action, orderID, result string, latency time.Duration) {
	l.writeEntry(AuditEntry{
		Timestamp: l.now().UTC(),
		User:      userFromContext(ctx),
		OrderID:   orderID,
		Action:    action,
		Params:    paramsFromContext(ctx),
		Outcome:   result,
		Code:      codeFromResult(result),
		LatencyMs: latency.Milliseconds(),
	})
}

// LogOrderAction logs an action with explicit parameters and its error.
func (l *Logger) LogOrderAction(ctx context.Context, action, orderID string, params map[string]interface{}, err error) {
	outcome := "SUCCESS"
	if err != nil {
		outcome = "ERROR"
	}
	if params == nil {
		params = paramsFromContext(ctx)
	}

	l.writeEntry(AuditEntry{
		Timestamp: l.now().UTC(),
		User:      userFromContext(ctx),
		OrderID:   orderID,
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		Code:      CodeFromError(err),
	})
}

func (l *Logger) writeEntry(entry AuditEntry) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}
	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

func userFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(actorKey).(string); ok && subject != "" {
		return subject
	}
	return "system"
}

func paramsFromContext(ctx context.Context) map[string]interface{} {
	if params, ok := ctx.Value(paramsKey).(map[string]interface{}); ok {
		return params
	}
	return make(map[string]interface{})
}

// knownCodes are the normalized codes that may appear in results and errors.
var knownCodes = []string{
	"INVALID_LOCATION",
	"UNAVAILABLE",
	"TIMEOUT",
	"CANCELLED",
	"BUSY",
	"NOT_FOUND",
	"UNAUTHORIZED",
	"FORBIDDEN",
}

func codeFromResult(result string) string {
	switch result {
	case "SUCCESS", "ERROR", "NO_WORK", "PARTIAL":
		return result
	}
	for _, code := range knownCodes {
		if result == code {
			return code
		}
	}
	return "UNKNOWN"
}

// CodeFromError maps an error to its normalized code by the code token in its message.
func CodeFromError(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	msg := err.Error()
	for _, code := range knownCodes {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return "ERROR"
}

// Close closes the audit file. Later actions are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate moves the current file to a timestamped backup and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return fmt.Errorf("audit logger closed")
	}
	return l.out.Rotate()
}
