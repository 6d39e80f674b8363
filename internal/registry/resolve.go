package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// maxResponseBytes caps the size of a versions payload we are willing to read.
const maxResponseBytes = 32 << 20

// Matcher is satisfied by any version requirement (e.g. target.Constraint).
type Matcher interface {
	Matches(v *semver.Version) bool
	String() string
}

// Latest returns the highest non-yanked version of crate.
func (c *Client) Latest(ctx context.Context, crate string) (*semver.Version, error) {
	return c.Resolve(ctx, crate, nil)
}

// Resolve returns the highest non-yanked version of crate that satisfies req.
// A nil req accepts any version.
func (c *Client) Resolve(ctx context.Context, crate string, req Matcher) (*semver.Version, error) {
	entries, err := c.fetchVersions(ctx, crate)
	if err != nil {
		return nil, err
	}

	versions := usableVersions(entries)
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoVersionsFound, crate)
	}

	if req == nil {
		return versions[len(versions)-1], nil
	}

	for i := len(versions) - 1; i >= 0; i-- {
		if req.Matches(versions[i]) {
			return versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no published versions of %s satisfy requirement %s", ErrNoMatchingVersion, crate, req.String())
}

// usableVersions drops yanked and unparsable entries and sorts ascending.
func usableVersions(entries []crateVersion) []*semver.Version {
	versions := make([]*semver.Version, 0, len(entries))
	for _, e := range entries {
		if e.Yanked {
			continue
		}
		v, err := semver.StrictNewVersion(strings.TrimSpace(e.Num))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Sort(semver.Collection(versions))
	return versions
}

func (c *Client) fetchVersions(ctx context.Context, crate string) ([]crateVersion, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/api/v1/crates/" + url.PathEscape(crate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UnavailableError{Crate: crate, Op: "creating registry request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Crate: crate, Op: "contacting registry", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UnavailableError{
			Crate: crate,
			Op:    "fetching versions",
			Err:   fmt.Errorf("registry returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UnavailableError{Crate: crate, Op: "reading registry response", Err: err}
	}

	if err := validatePayload(body); err != nil {
		return nil, &UnavailableError{Crate: crate, Op: "parsing registry response", Err: err}
	}

	var payload versionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &UnavailableError{Crate: crate, Op: "parsing registry response", Err: err}
	}
	return payload.Versions, nil
}
