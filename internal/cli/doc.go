// Package cli defines the cargox command line. The root command takes a
// crate spec followed by the arguments to forward; flags are only parsed
// before the crate spec. The command builds the pipeline from the config,
// runs it, and maps the outcome to an exit code.
package cli
