package registry

import (
	"errors"
	"net/http"
	"time"

	"github.com/cargox-labs/cargox/internal/branding"
)

// DefaultTimeout bounds every registry request.
const DefaultTimeout = 10 * time.Second

var (
	// ErrRegistryUnavailable wraps transport, status and decoding failures.
	ErrRegistryUnavailable = errors.New("registry unavailable")
	// ErrNoVersionsFound means the crate has no usable (non-yanked, valid) versions.
	ErrNoVersionsFound = errors.New("no published versions found")
	// ErrNoMatchingVersion means no usable version satisfies the requirement.
	ErrNoMatchingVersion = errors.New("no matching version")
)

// UnavailableError reports a failed registry fetch with its underlying cause.
type UnavailableError struct {
	Crate string
	Op    string
	Err   error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return e.Op + " for " + e.Crate
	}
	return e.Op + " for " + e.Crate + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRegistryUnavailable) hold for every fetch failure.
func (e *UnavailableError) Is(target error) bool { return target == ErrRegistryUnavailable }

// versionsResponse is the subset of GET /api/v1/crates/<name> we consume.
type versionsResponse struct {
	Versions []crateVersion `json:"versions"`
}

type crateVersion struct {
	Num    string `json:"num"`
	Yanked bool   `json:"yanked"`
}

// Client queries the registry.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing). A client
// without a timeout gets DefaultTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		if cp.Timeout == 0 {
			cp.Timeout = DefaultTimeout
		}
		c.httpClient = &cp
	}
}

// WithBaseURL points the client at a different registry host.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a Client for the default registry.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    branding.RegistryURL(),
		userAgent:  branding.UserAgent("dev"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the registry base URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
