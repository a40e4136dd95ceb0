package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultScheme is used for targets given without a scheme.
const DefaultScheme = "https"

// pseudoSchemes never name a fetchable document.
var pseudoSchemes = []string{"javascript", "mailto", "tel", "data"}

var (
	// ErrEmptyTarget is returned when a target URL is blank.
	ErrEmptyTarget = errors.New("empty target URL")

	// ErrUnsupportedScheme is returned for anything that is not http or https,
	// including javascript: pseudo URLs.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrMissingHost is returned when a target has no host part.
	ErrMissingHost = errors.New("target URL has no host")
)

// NormalizeTarget turns a raw URL into the canonical form used as a frontier key.
//
// The scheme defaults to https, scheme and host are lower-cased, and the
// query, fragment and ;params of the last path segment are dropped. An empty
// path becomes "/", so "https://example.test" and "https://example.test/"
// are the same target.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyTarget
	}
	lower := strings.ToLower(raw)
	for _, scheme := range pseudoSchemes {
		if strings.HasPrefix(lower, scheme+":") {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
		}
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = DefaultScheme + "://" + raw
	} else if strings.HasPrefix(raw, "//") {
		raw = DefaultScheme + ":" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", raw, err)
	}
	return normalizeURL(u)
}

// NormalizeURL is NormalizeTarget for an already parsed URL.
func NormalizeURL(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrEmptyTarget
	}
	c := *u
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	return normalizeURL(&c)
}

func normalizeURL(u *url.URL) (string, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", ErrMissingHost
	}

	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Opaque = ""

	u.Path = stripParams(u.Path)
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// stripParams removes ";params" from the last path segment.
func stripParams(p string) string {
	last := strings.LastIndex(p, "/")
	if i := strings.Index(p[last+1:], ";"); i >= 0 {
		return p[:last+1+i]
	}
	return p
}

// Domain returns the host (with port, if any) a target belongs to.
func Domain(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if u.Host == "" {
		return "", ErrMissingHost
	}
	return strings.ToLower(u.Host), nil
}

// SameDomain reports whether u is hosted on domain.
func SameDomain(u *url.URL, domain string) bool {
	return u != nil && strings.EqualFold(u.Host, domain)
}
