// Package logs reads the agent's log file for the CLI.
//
// Tail returns the last N lines or everything written after a byte offset,
// optionally filtered by a substring, and can wait for new lines so
// `sorter logs --follow` polls with a stable cursor.
package logs
