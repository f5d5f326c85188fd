package mcpclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is used when the configured URL has no path.
const DefaultPath = "/mcp"

// ResolveEndpoint normalizes a configured server URL: the scheme defaults to
// http, only http and https are accepted, and an empty path becomes
// DefaultPath.
func ResolveEndpoint(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("mcpclient: endpoint is empty")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("mcpclient: parse endpoint %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("mcpclient: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("mcpclient: endpoint %q has no host", raw)
	}
	u.Scheme = scheme
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}
