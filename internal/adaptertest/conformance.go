// Package adaptertest provides controller-agnostic conformance testing for robot adapters.
//
// Every IRobotAdapter must accept the physical source bins, reject any other
// location with INVALID_LOCATION before touching the controller, and stop on a
// cancelled context.
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cam-andersen/InventorySystemV3/internal/adapter"
)

// Capabilities defines the expected behaviour for conformance testing.
type Capabilities struct {
	Name             string
	ValidLocations   []int
	InvalidLocations []int
	// MaxCallDuration bounds a single successful call; zero disables the check.
	MaxCallDuration time.Duration
}

// DefaultCapabilities matches a three-bin pick station.
func DefaultCapabilities(name string) Capabilities {
	return Capabilities{
		Name:             name,
		ValidLocations:   []int{1, 2, 3},
		InvalidLocations: []int{0, 4, -1},
		MaxCallDuration:  time.Second,
	}
}

// ConformanceResult represents the result of a conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	AdapterName   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// checkFunc runs one conformance check; a non-nil error fails it.
type checkFunc func(ctx context.Context, a adapter.IRobotAdapter, details map[string]interface{}) error

// RunConformance runs the complete conformance test suite for an adapter.
func RunConformance(t *testing.T, newAdapter func() adapter.IRobotAdapter, caps Capabilities) {
	startTime := time.Now()

	report := &ConformanceReport{
		AdapterName:   caps.Name,
		OverallPassed: true,
	}
	if report.AdapterName == "" {
		report.AdapterName = "Unknown Adapter"
	}

	runPickTests(newAdapter, caps, report)
	runPrimitiveTests(newAdapter, caps, report)
	runCancellationTests(newAdapter, report)

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Adapter conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

func runPickTests(newAdapter func() adapter.IRobotAdapter, caps Capabilities, report *ConformanceReport) {
	for _, loc := range caps.ValidLocations {
		loc := loc
		report.run(fmt.Sprintf("Pick_Valid_%d", loc), newAdapter(), caps.MaxCallDuration,
			func(ctx context.Context, a adapter.IRobotAdapter, details map[string]interface{}) error {
				details["location"] = loc
				return a.Pick(ctx, loc)
			})
	}

	for _, loc := range caps.InvalidLocations {
		loc := loc
		report.run(fmt.Sprintf("Pick_Invalid_%d", loc), newAdapter(), 0,
			func(ctx context.Context, a adapter.IRobotAdapter, details map[string]interface{}) error {
				err := a.Pick(ctx, loc)
				if err == nil {
					return fmt.Errorf("Pick(%d) should have failed but succeeded", loc)
				}
				if !errors.Is(err, adapter.ErrInvalidLocation) {
					return fmt.Errorf("Pick(%d) should return INVALID_LOCATION, got: %v", loc, err)
				}
				details["actualError"] = err.Error()
				return nil
			})
	}
}

func runPrimitiveTests(newAdapter func() adapter.IRobotAdapter, caps Capabilities, report *ConformanceReport) {
	report.run("ReleaseBrake_Basic", newAdapter(), caps.MaxCallDuration,
		func(ctx context.Context, a adapter.IRobotAdapter, _ map[string]interface{}) error {
			return a.ReleaseBrake(ctx)
		})

	report.run("RunProgram_Basic", newAdapter(), caps.MaxCallDuration,
		func(ctx context.Context, a adapter.IRobotAdapter, _ map[string]interface{}) error {
			return a.RunProgram(ctx, "textmsg(\"conformance\")")
		})

	report.run("Pick_Repeated", newAdapter(), 0,
		func(ctx context.Context, a adapter.IRobotAdapter, details map[string]interface{}) error {
			loc := caps.ValidLocations[0]
			if err := a.Pick(ctx, loc); err != nil {
				return fmt.Errorf("first Pick(%d) failed: %v", loc, err)
			}
			if err := a.Pick(ctx, loc); err != nil {
				return fmt.Errorf("second Pick(%d) failed: %v", loc, err)
			}
			details["calls"] = 2
			return nil
		})
}

func runCancellationTests(newAdapter func() adapter.IRobotAdapter, report *ConformanceReport) {
	report.run("Pick_ContextCancelled", newAdapter(), 0,
		func(ctx context.Context, a adapter.IRobotAdapter, details map[string]interface{}) error {
			cancelledCtx, cancel := context.WithCancel(ctx)
			cancel()

			err := a.Pick(cancelledCtx, 1)
			if err == nil {
				return errors.New("Pick with cancelled context should have failed")
			}
			if !errors.Is(err, adapter.ErrCancelled) {
				return fmt.Errorf("expected CANCELLED, got: %v", err)
			}
			details["error"] = err.Error()
			return nil
		})
}

// Helper functions

func (r *ConformanceReport) run(name string, a adapter.IRobotAdapter, maxDuration time.Duration, check checkFunc) {
	result := ConformanceResult{
		TestName: name,
		Details:  make(map[string]interface{}),
	}

	start := time.Now()
	err := check(context.Background(), a, result.Details)
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = err.Error()
	case maxDuration > 0 && result.Duration > maxDuration:
		result.Error = fmt.Sprintf("operation took too long: %v (limit %v)", result.Duration, maxDuration)
	default:
		result.Passed = true
	}

	r.addResult(result)
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("ROBOT ADAPTER CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Adapter: %s", report.AdapterName)
	t.Logf("Passed: %d/%d (%s) in %v", report.PassedTests, report.TotalTests,
		map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed], report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))
	t.Logf("%-28s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			parts := make([]string, 0, len(result.Details))
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			sort.Strings(parts)
			details = strings.Join(parts, ", ")
		}

		t.Logf("%-28s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
