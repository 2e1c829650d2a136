package telemetry

import "errors"

var (
	// ErrDisabled indicates telemetry is switched off in configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrNotConnected indicates the client has no live InfluxDB connection.
	ErrNotConnected = errors.New("telemetry: not connected")

	// ErrConnectionFailed indicates the initial connection could not be made.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)
