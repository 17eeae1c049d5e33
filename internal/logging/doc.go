// Package logging assembles structured slog loggers and formatting helpers used
// across the sorter agent and CLI.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and defines the standard field keys (component, event_type, error_hint,
// impact) so the watcher, engine, and relocator emit lines with the same shape.
// The package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so new components route
// output the same way as the rest of the system.
package logging
