// Package ur implements the robot adapter for Universal Robots controllers.
//
// A pick is two fire-and-forget TCP sends: the brake release preamble on the
// dashboard port, then the motion program on the secondary program port.
// Nothing is read back from the controller.
package ur

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/transport"
	"github.com/cam-andersen/InventorySystemV3/internal/urscript"
)

// Controller ports.
const (
	DefaultControlPort = 29999
	DefaultProgramPort = 30002
)

// Config addresses one controller.
type Config struct {
	Host        string
	ControlPort int
	ProgramPort int
	SendTimeout time.Duration
}

// Robot implements IRobotAdapter over the UR socket interfaces.
type Robot struct {
	adapter.AdapterBase

	control transport.Endpoint
	program transport.Endpoint
	sender  transport.Sender
	logger  *zap.Logger
}

// Option configures a Robot.
type Option func(*Robot)

// WithSender replaces the TCP sender.
func WithSender(s transport.Sender) Option {
	return func(r *Robot) { r.sender = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Robot) { r.logger = l }
}

// New creates a UR adapter. Zero config fields take the controller defaults.
func New(robotID string, cfg Config, opts ...Option) *Robot {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.ControlPort == 0 {
		cfg.ControlPort = DefaultControlPort
	}
	if cfg.ProgramPort == 0 {
		cfg.ProgramPort = DefaultProgramPort
	}

	r := &Robot{
		AdapterBase: adapter.AdapterBase{
			RobotID: robotID,
			Model:   "UR",
			Status:  "online",
		},
		control: transport.Endpoint{Host: cfg.Host, Port: cfg.ControlPort},
		program: transport.Endpoint{Host: cfg.Host, Port: cfg.ProgramPort},
		sender:  transport.NewTCPSender(cfg.SendTimeout),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ControlEndpoint returns the dashboard endpoint.
func (r *Robot) ControlEndpoint() transport.Endpoint { return r.control }

// ProgramEndpoint returns the program endpoint.
func (r *Robot) ProgramEndpoint() transport.Endpoint { return r.program }

// ReleaseBrake sends the unlock preamble to the dashboard port.
func (r *Robot) ReleaseBrake(ctx context.Context) error {
	if err := r.sender.Send(ctx, r.control, urscript.EncodeUnlockPreamble()); err != nil {
		r.SetStatus("unavailable")
		return adapter.Normalize(err, r.control)
	}
	return nil
}

// RunProgram plays program on the program port.
func (r *Robot) RunProgram(ctx context.Context, program string) error {
	if err := r.sender.Send(ctx, r.program, urscript.NormalizeTerminator(program)); err != nil {
		r.SetStatus("unavailable")
		return adapter.Normalize(err, r.program)
	}
	r.SetStatus("online")
	return nil
}

// Pick encodes the program first so an invalid location never reaches the
// controller, then releases the brake and plays the program.
func (r *Robot) Pick(ctx context.Context, location int) error {
	program, err := urscript.EncodePick(location)
	if err != nil {
		return adapter.Normalize(err, location)
	}
	if err := ctx.Err(); err != nil {
		return adapter.Normalize(err, location)
	}

	start := time.Now()
	if err := r.ReleaseBrake(ctx); err != nil {
		return err
	}
	if err := r.RunProgram(ctx, program); err != nil {
		return err
	}

	r.logger.Debug("pick sent",
		zap.String("robot", r.RobotID),
		zap.Int("location", location),
		zap.Duration("latency", time.Since(start)))
	return nil
}
