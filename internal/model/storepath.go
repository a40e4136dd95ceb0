package model

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// IllegalCharacters are removed from every path segment derived from page text.
const IllegalCharacters = `<>:"/\|?*`

// boundaryCharacters are trimmed from both ends of a title.
const boundaryCharacters = " -_."

// MaxSegmentBytes caps the length of a path segment derived from page text.
// File systems reject names over 255 bytes; the rest is room for an extension.
const MaxSegmentBytes = 240

// NoTitle names pages that have no usable <title>.
const NoTitle = "no title"

// StorePath places extracted content below <root>/<domain>.
// Category may be empty, Title always has at least one segment.
type StorePath struct {
	Category string
	Title    []string
}

// Segments returns the non-empty path segments, category first.
func (p StorePath) Segments() []string {
	segs := make([]string, 0, len(p.Title)+1)
	if p.Category != "" {
		segs = append(segs, p.Category)
	}
	for _, t := range p.Title {
		if t != "" {
			segs = append(segs, t)
		}
	}
	return segs
}

// Heading is the title as a single line, segments joined without separator.
func (p StorePath) Heading() string {
	return strings.Join(p.Title, "")
}

// Dir returns <root>/<domain>/<category>/<title...> as a file system path.
func (p StorePath) Dir(root, domain string) string {
	parts := append([]string{root, SafeDomain(domain)}, p.Segments()...)
	return filepath.Join(parts...)
}

// StripIllegal removes file-system-illegal characters. Control characters
// become spaces.
func StripIllegal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return ' '
		case strings.ContainsRune(IllegalCharacters, r):
			return -1
		default:
			return r
		}
	}, s)
}

// TrimBoundary trims the title boundary characters " -_." from both ends.
func TrimBoundary(s string) string {
	return strings.Trim(s, boundaryCharacters)
}

// SanitizeSegment makes page text usable as one path segment.
func SanitizeSegment(s string) string {
	return TruncateSegment(TrimBoundary(StripIllegal(s)), MaxSegmentBytes)
}

// TruncateSegment shortens s to at most limit bytes without splitting a
// rune. A shortened segment is trimmed of boundary characters again.
func TruncateSegment(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := max(limit, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return TrimBoundary(s[:cut])
}

// SafeDomain makes a host:port usable as a directory or file name.
func SafeDomain(domain string) string {
	return strings.ReplaceAll(domain, ":", "_")
}
