package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrNoEntries) {
//	    // nothing catalogued for the requested beamlines
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNoEntries is returned by Collect when no beamline yields any entry.
	ErrNoEntries = errors.New("device: no entries found")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("device: invalid entry")
)
