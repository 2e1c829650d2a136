package fleet

import "errors"

// Domain errors for the fleet package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, fleet.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("fleet: device not found")

	// ErrCodeNotFound is returned by PairByCode when the code does not match
	// any currently-unpaired device. A code consumed by a concurrent pairing
	// attempt reports the same error: callers cannot distinguish "never
	// existed" from "just taken", matching the not-found response devices see.
	ErrCodeNotFound = errors.New("fleet: pairing code not found")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("fleet: invalid device name")

	// ErrInvalidOrganization is returned when the owning organization ID is empty.
	ErrInvalidOrganization = errors.New("fleet: invalid organization")

	// ErrInvalidCommand is returned when a command type is empty.
	ErrInvalidCommand = errors.New("fleet: invalid command")
)
