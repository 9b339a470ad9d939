package engine

import "errors"

var (
	// Build errors. The requested sample rate, channel count or sample format
	// cannot be served by the device.
	ErrFormatNotSupported = errors.New("format not supported")
	// The driver refused to create the hardware stream, or the device is
	// already in use by another driver's streams.
	ErrDeviceNotAvailable = errors.New("device not available")

	// The stream id refers to a destroyed or never-created stream.
	// Ids are caller supplied, so this is a programming error.
	ErrInvalidStreamID = errors.New("invalid stream id")

	// The process-lifetime callback slot was already filled.
	ErrCallbackAlreadyRegistered = errors.New("callback already registered")
	errNilCallback               = errors.New("callback must not be nil")
)

// Label for the build failure metric.
func buildFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrFormatNotSupported):
		return "format_not_supported"
	case errors.Is(err, ErrDeviceNotAvailable):
		return "device_not_available"
	}
	return "unknown"
}
