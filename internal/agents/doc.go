// Package agents runs one agent process per call.
//
// A run launches the configured executor binary in the repository directory
// with the rendered prompt, streams its stdout and stderr both to the
// console and to a per-run log file, and enforces a wall-clock timeout.
//
// On timeout the process receives a graceful terminate request (SIGTERM on
// Unix, CTRL_BREAK on Windows) exactly once. The runner then keeps waiting
// for the process to exit on its own; there is no forced kill. The liveness
// handle recorded at spawn is released only after the process has exited.
//
// When the caller's context is cancelled the process is asked to terminate
// and the runner waits up to the shutdown grace before returning.
package agents
