// Package pipeline turns a crate spec into a running binary: parse the spec,
// reuse a cached binary or resolve a version against the registry, install on
// a miss, and execute the result with the forwarded arguments.
package pipeline
