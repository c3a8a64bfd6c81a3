// Package persistence keeps writable resource values and write-attribute
// settings across device restarts.
//
// The state is a single JSON file keyed by resource path. Capture walks a
// device tree and records every dynamic resource; Restore writes the values
// back and re-applies the recorded notification attributes. Static resources
// come from configuration and are never persisted.
package persistence
