// Package main hosts the sorter CLI entrypoint and command graph.
//
// `sorter run` starts the agent in the foreground. The remaining commands
// inspect a running agent over its status socket, read the relocation
// history, preview routing decisions, and scaffold configuration.
package main
