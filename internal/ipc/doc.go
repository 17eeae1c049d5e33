// Package ipc exposes the running agent over JSON-RPC on a Unix socket and
// ships the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. The CLI
// dials with a short timeout so commands fail fast when no agent is running.
package ipc
