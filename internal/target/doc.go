// Package target parses crate specifications of the form "name[@version]"
// into a PackageSpec and carries the resolved install target (name, concrete
// version, binary) through the rest of the pipeline.
package target
