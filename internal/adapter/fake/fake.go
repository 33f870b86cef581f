// Package fake provides an in-memory robot adapter for tests and dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
	"github.com/cam-andersen/InventorySystemV3/internal/urscript"
)

// Robot implements IRobotAdapter without any network I/O.
type Robot struct {
	adapter.AdapterBase

	mu            sync.Mutex
	picks         []int
	programs      []string
	brakeReleases int

	// Error simulation
	simulateErrors bool
	errorType      string
	failAfter      int // successful picks before the simulated error applies; <0 means immediately

	onPick func(location int)
}

// NewRobot creates a fake robot.
func NewRobot(robotID string) *Robot {
	return &Robot{
		AdapterBase: adapter.AdapterBase{
			RobotID: robotID,
			Model:   "Fake-Robot-Test",
			Status:  "online",
		},
		failAfter: -1,
	}
}

// ReleaseBrake records the unlock preamble.
func (r *Robot) ReleaseBrake(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return adapter.Normalize(err, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.simulatedError(); err != nil {
		return err
	}
	r.brakeReleases++
	return nil
}

// RunProgram records a motion program.
func (r *Robot) RunProgram(ctx context.Context, program string) error {
	if err := ctx.Err(); err != nil {
		return adapter.Normalize(err, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.simulatedError(); err != nil {
		return err
	}
	r.programs = append(r.programs, urscript.NormalizeTerminator(program))
	return nil
}

// Pick validates location, encodes the program and records the pick.
func (r *Robot) Pick(ctx context.Context, location int) error {
	if err := ctx.Err(); err != nil {
		return adapter.Normalize(err, location)
	}

	program, err := urscript.EncodePick(location)
	if err != nil {
		return adapter.Normalize(err, location)
	}

	r.mu.Lock()
	if err := r.simulatedError(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.brakeReleases++
	r.programs = append(r.programs, program)
	r.picks = append(r.picks, location)
	if r.failAfter > 0 {
		r.failAfter--
		if r.failAfter == 0 {
			r.failAfter = -1
		}
	}
	hook := r.onPick
	r.mu.Unlock()

	if hook != nil {
		hook(location)
	}
	return nil
}

// Helper methods for testing

// SetErrorSimulation makes every following call fail with the given code.
func (r *Robot) SetErrorSimulation(errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateErrors = true
	r.errorType = errorType
	r.failAfter = -1
}

// FailAfter lets n picks succeed, then fails with the given code.
func (r *Robot) FailAfter(n int, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateErrors = true
	r.errorType = errorType
	r.failAfter = n
	if n <= 0 {
		r.failAfter = -1
	}
}

// DisableErrorSimulation disables error simulation.
func (r *Robot) DisableErrorSimulation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateErrors = false
	r.errorType = ""
	r.failAfter = -1
}

// OnPick registers a hook run after every successful pick.
func (r *Robot) OnPick(fn func(location int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPick = fn
}

// Picks returns the locations picked so far, in order.
func (r *Robot) Picks() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.picks...)
}

// Programs returns every program played so far.
func (r *Robot) Programs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.programs...)
}

// BrakeReleases returns how many unlock preambles were sent.
func (r *Robot) BrakeReleases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.brakeReleases
}

// simulatedError must be called with r.mu held.
func (r *Robot) simulatedError() error {
	if !r.simulateErrors || r.failAfter > 0 {
		return nil
	}

	var err error
	switch r.errorType {
	case "INVALID_LOCATION":
		err = fmt.Errorf("INVALID_LOCATION: simulated location error")
	case "UNAVAILABLE":
		err = fmt.Errorf("UNAVAILABLE: simulated controller offline")
	case "TIMEOUT":
		err = fmt.Errorf("TIMEOUT: simulated send timeout")
	default:
		err = fmt.Errorf("INTERNAL: simulated internal error")
	}
	return adapter.Normalize(err, r.RobotID)
}
