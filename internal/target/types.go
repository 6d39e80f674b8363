package target

import (
	"github.com/Masterminds/semver/v3"
)

// VersionRequest is the version half of a crate spec. It is one of
// Unspecified, Latest or Constraint; no other package can add variants.
type VersionRequest interface {
	isVersionRequest()
	String() string
}

// Unspecified means no version was given: reuse any existing binary, or
// install the newest published version when none exists.
type Unspecified struct{}

// Latest forces resolution to the newest published version.
type Latest struct{}

// Constraint is a semantic-version range that must resolve to a concrete version.
type Constraint struct {
	// Raw is the token as typed after the '@'.
	Raw string
	// Constraints is the parsed range.
	Constraints *semver.Constraints
	// Exact is set when Raw is a bare version ("1.2.3"), which pins exactly
	// that version and lets callers check the cache before asking the registry.
	Exact *semver.Version
}

func (Unspecified) isVersionRequest() {}
func (Latest) isVersionRequest()      {}
func (Constraint) isVersionRequest()  {}

func (Unspecified) String() string  { return "" }
func (Latest) String() string       { return "latest" }
func (c Constraint) String() string { return c.Raw }

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v *semver.Version) bool {
	if c.Constraints == nil {
		return false
	}
	return c.Constraints.Check(v)
}

// PackageSpec is a parsed "name[@version]" string.
type PackageSpec struct {
	Name    string
	Request VersionRequest
}

// String renders the crate spec back into "name" or "name@token" form.
func (s PackageSpec) String() string {
	if tok := s.Request.String(); tok != "" {
		return s.Name + "@" + tok
	}
	return s.Name
}

// Target is the crate, version and binary that will be installed and run.
// Version is nil only when an unversioned binary is being reused.
type Target struct {
	Crate   string
	Version *semver.Version
	Binary  string
}

// New builds a Target for spec. The binary defaults to the crate name
// unless bin is non-empty.
func New(spec PackageSpec, bin string) Target {
	binary := bin
	if binary == "" {
		binary = spec.Name
	}
	return Target{Crate: spec.Name, Binary: binary}
}

// WithVersion returns a copy of t pinned to v.
func (t Target) WithVersion(v *semver.Version) Target {
	t.Version = v
	return t
}

// Descriptor returns "crate@version", or just the crate when unversioned.
func (t Target) Descriptor() string {
	if t.Version == nil {
		return t.Crate
	}
	return t.Crate + "@" + t.Version.String()
}
