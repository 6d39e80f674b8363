// Package registry resolves a crate name and optional version requirement to
// a concrete version by querying the crates.io HTTP API. Yanked releases and
// unparsable version strings are ignored; the highest remaining version that
// satisfies the requirement wins.
package registry
