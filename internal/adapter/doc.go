// Package adapter defines the robot adapter interface for the Item Sorter Container.
//
// Robot adapters implement controller-specific protocols to move items between
// bins. The IRobotAdapter interface provides a stable contract the dispatcher
// depends on; controller errors are normalized to INVALID_LOCATION,
// UNAVAILABLE, TIMEOUT, CANCELLED and INTERNAL.
package adapter
