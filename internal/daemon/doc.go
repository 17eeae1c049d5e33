// Package daemon coordinates the long-running sorter agent.
//
// It ties the loaded configuration, the watch backend, and the engine into a
// single lifecycle guarded by a flock-based lock so only one agent runs per
// state directory. Status snapshots feed the IPC server and the CLI.
//
// Keep orchestration here: classification and relocation live in their own
// packages while the daemon focuses on startup, shutdown, and reporting.
package daemon
