package adapter

import (
	"context"
)

// IRobotAdapter defines the stable southbound robot contract.
type IRobotAdapter interface {
	// ReleaseBrake sends the unlock preamble on the control channel.
	ReleaseBrake(ctx context.Context) error

	// RunProgram plays a motion program on the program channel.
	// The program is sent with exactly one trailing newline.
	RunProgram(ctx context.Context, program string) error

	// Pick moves one unit from the source bin at location into the shipment bin.
	// Params: location (1-3). The location is validated before anything is sent.
	Pick(ctx context.Context, location int) error
}

// AdapterBase provides common functionality for adapter implementations.
type AdapterBase struct {
	// RobotID identifies the robot this adapter controls
	RobotID string

	// Model identifies the controller model
	Model string

	// Status indicates the current robot status
	Status string
}

// GetRobotID returns the robot identifier.
func (a *AdapterBase) GetRobotID() string {
	return a.RobotID
}

// GetModel returns the controller model.
func (a *AdapterBase) GetModel() string {
	return a.Model
}

// GetStatus returns the robot status.
func (a *AdapterBase) GetStatus() string {
	return a.Status
}

// SetStatus updates the robot status.
func (a *AdapterBase) SetStatus(status string) {
	a.Status = status
}
