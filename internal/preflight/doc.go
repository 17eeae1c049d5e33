// Package preflight provides readiness checks for the filesystem paths sorter
// depends on.
//
// These checks run in two contexts:
//   - The agent logs a snapshot of RunAll at startup so permission problems
//     show up before the first file arrives.
//   - The CLI "sorter status" and "sorter config validate" commands render
//     the same results for operators.
//
// A failing check is reported, never fatal; a missing watch root still stops
// the agent when watches are installed.
package preflight
