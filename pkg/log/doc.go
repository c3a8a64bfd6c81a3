// Package log provides protocol capture for the LwM2M device.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, CoAP, service).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For field devices: write to a binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/lwm2m/device.plog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw datagrams (FrameEvent)
//   - Wire: Decoded CoAP messages (MessageEvent)
//   - Service: Connection, handshake and observation state (StateChangeEvent)
//
// Errors have a dedicated event type.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. Reader
// iterates a file with an optional Filter.
package log
