// Package executor runs the resolved binary in the foreground with the
// caller's arguments and standard streams, and reports how it exited.
package executor
