package target

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidSpec is returned for any malformed crate spec.
var ErrInvalidSpec = errors.New("invalid crate spec")

const latestToken = "latest"

// ParseSpec parses "name", "name@latest" or "name@<range>".
//
// A bare version such as "1.2.3" is an exact pin, the same way
// `cargo install --version 1.2.3` treats it. A bare partial version such as
// "1.2" is a caret range (">=1.2.0, <2.0.0"), as in Cargo.
func ParseSpec(raw string) (PackageSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return PackageSpec{}, fmt.Errorf("%w: crate spec cannot be empty", ErrInvalidSpec)
	}

	parts := strings.Split(raw, "@")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return PackageSpec{}, fmt.Errorf("%w: crate name cannot be empty in %q", ErrInvalidSpec, raw)
	}

	switch len(parts) {
	case 1:
		return PackageSpec{Name: name, Request: Unspecified{}}, nil
	case 2:
	default:
		return PackageSpec{}, fmt.Errorf("%w: %q: expected at most one @version suffix", ErrInvalidSpec, raw)
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return PackageSpec{}, fmt.Errorf("%w: %q: version cannot be empty after @", ErrInvalidSpec, raw)
	}

	if strings.EqualFold(token, latestToken) {
		return PackageSpec{Name: name, Request: Latest{}}, nil
	}

	req, err := parseConstraint(token)
	if err != nil {
		return PackageSpec{}, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, raw, err)
	}
	return PackageSpec{Name: name, Request: req}, nil
}

func parseConstraint(token string) (Constraint, error) {
	if v, err := semver.StrictNewVersion(token); err == nil {
		c, err := semver.NewConstraint("=" + v.String())
		if err != nil {
			return Constraint{}, fmt.Errorf("parsing version %q: %w", token, err)
		}
		return Constraint{Raw: token, Constraints: c, Exact: v}, nil
	}

	expr := token
	if isBarePartial(token) {
		expr = "^" + token
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return Constraint{}, fmt.Errorf("parsing version requirement %q: %w", token, err)
	}
	return Constraint{Raw: token, Constraints: c}, nil
}

// isBarePartial reports whether token is an operator-less partial version
// such as "1" or "1.2". Cargo reads these as caret requirements.
func isBarePartial(token string) bool {
	if token == "" || token[0] < '0' || token[0] > '9' {
		return false
	}
	parts := strings.Split(token, ".")
	if len(parts) > 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
