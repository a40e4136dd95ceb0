package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// DefaultSourceAttr is the attribute an image target is downloaded from.
const DefaultSourceAttr = "src"

// ErrInvalidElementSpec is returned by ParseElementSpec for malformed input.
var ErrInvalidElementSpec = errors.New("invalid element spec")

// AttrFilter constrains one attribute of an element.
//
// In YAML a filter is written either as a boolean (true: the attribute must
// be present, false: it must be absent) or as a string the attribute value
// must equal. The class attribute is compared token by token, so
// "class: post" matches class="post body".
type AttrFilter struct {
	// Present requires the attribute to exist when Value is empty.
	Present bool

	// Absent requires the attribute not to exist.
	Absent bool

	// Value is the expected attribute value.
	Value string
}

// UnmarshalYAML accepts a bool or a scalar value.
func (f *AttrFilter) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: attribute filter must be a scalar (line %d)", ErrInvalidElementSpec, node.Line)
	}
	if node.ShortTag() == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*f = AttrFilter{Present: b, Absent: !b}
		return nil
	}
	*f = AttrFilter{Value: node.Value}
	return nil
}

// MarshalYAML writes the filter back in the form UnmarshalYAML reads.
func (f AttrFilter) MarshalYAML() (any, error) {
	switch {
	case f.Value != "":
		return f.Value, nil
	case f.Absent:
		return false, nil
	default:
		return true, nil
	}
}

func (f AttrFilter) match(key, val string, ok bool) bool {
	switch {
	case f.Absent:
		return !ok
	case f.Value == "":
		return ok
	case !ok:
		return false
	case key == "class":
		for _, token := range strings.Fields(val) {
			if token == f.Value {
				return true
			}
		}
		return strings.TrimSpace(val) == f.Value
	default:
		return val == f.Value
	}
}

// ElementSpec selects elements by tag name and attribute filters.
// An empty Tag matches any element.
type ElementSpec struct {
	Tag   string                `yaml:"tag"`
	Attrs map[string]AttrFilter `yaml:"attrs,omitempty"`
}

// UnmarshalYAML accepts the compact string form or a mapping with tag and
// attrs keys.
func (e *ElementSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		spec, err := ParseElementSpec(node.Value)
		if err != nil {
			return fmt.Errorf("%w (line %d)", err, node.Line)
		}
		*e = spec
		return nil
	}

	type plain ElementSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = ElementSpec(p)
	return nil
}

// IsZero reports whether the spec is unset.
func (e ElementSpec) IsZero() bool {
	return e.Tag == "" && len(e.Attrs) == 0
}

// Matches reports whether n is an element satisfying the spec.
func (e ElementSpec) Matches(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if e.Tag != "" && e.Tag != "*" && !strings.EqualFold(n.Data, e.Tag) {
		return false
	}
	for key, filter := range e.Attrs {
		val, ok := attr(n, key)
		if !filter.match(key, val, ok) {
			return false
		}
	}
	return true
}

// Selector returns the tag part of the spec in CSS form.
func (e ElementSpec) Selector() string {
	if e.Tag == "" {
		return "*"
	}
	return strings.ToLower(e.Tag)
}

// String renders the spec in the compact syntax accepted by ParseElementSpec.
func (e ElementSpec) String() string {
	var b strings.Builder
	b.WriteString(e.Tag)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f := e.Attrs[k]
		switch {
		case f.Value != "":
			fmt.Fprintf(&b, "[%s=%q]", k, f.Value)
		case f.Absent:
			fmt.Fprintf(&b, "[!%s]", k)
		default:
			fmt.Fprintf(&b, "[%s]", k)
		}
	}
	return b.String()
}

// ParseElementSpec parses the compact form used on the command line:
//
//	div[class=post-body]
//	img[src][!data-lazy]
//	a[title="two words"]
//
// "[name]" requires the attribute, "[!name]" forbids it and "[name=value]"
// requires a value, optionally quoted.
func ParseElementSpec(s string) (ElementSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ElementSpec{}, fmt.Errorf("%w: empty", ErrInvalidElementSpec)
	}

	spec := ElementSpec{}
	open := strings.IndexByte(s, '[')
	if open < 0 {
		spec.Tag = s
		return spec, validateTag(spec.Tag, s)
	}
	spec.Tag = strings.TrimSpace(s[:open])
	if err := validateTag(spec.Tag, s); err != nil {
		return ElementSpec{}, err
	}

	rest := s[open:]
	for rest != "" {
		if rest[0] != '[' {
			return ElementSpec{}, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidElementSpec, rest[0], s)
		}
		end := closingBracket(rest)
		if end < 0 {
			return ElementSpec{}, fmt.Errorf("%w: unterminated '[' in %q", ErrInvalidElementSpec, s)
		}
		key, filter, err := parseAttrFilter(rest[1:end])
		if err != nil {
			return ElementSpec{}, fmt.Errorf("%w in %q", err, s)
		}
		if spec.Attrs == nil {
			spec.Attrs = make(map[string]AttrFilter)
		}
		spec.Attrs[key] = filter
		rest = strings.TrimSpace(rest[end+1:])
	}

	return spec, nil
}

func validateTag(tag, input string) error {
	if strings.ContainsAny(tag, " \t]=\"'") {
		return fmt.Errorf("%w: bad tag name in %q", ErrInvalidElementSpec, input)
	}
	return nil
}

// closingBracket finds the ']' ending the filter that starts at s[0],
// skipping brackets inside quotes.
func closingBracket(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ']':
			return i
		}
	}
	return -1
}

func parseAttrFilter(body string) (string, AttrFilter, error) {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "!") {
		key := strings.TrimSpace(body[1:])
		if key == "" || strings.ContainsAny(key, "=") {
			return "", AttrFilter{}, fmt.Errorf("%w: bad negated attribute %q", ErrInvalidElementSpec, body)
		}
		return strings.ToLower(key), AttrFilter{Absent: true}, nil
	}

	key, value, hasValue := strings.Cut(body, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", AttrFilter{}, fmt.Errorf("%w: missing attribute name", ErrInvalidElementSpec)
	}
	if !hasValue {
		return key, AttrFilter{Present: true}, nil
	}

	value = strings.TrimSpace(value)
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') {
		if value[n-1] != value[0] {
			return "", AttrFilter{}, fmt.Errorf("%w: unbalanced quote in %q", ErrInvalidElementSpec, body)
		}
		value = value[1 : n-1]
	}
	if value == "" {
		return key, AttrFilter{Present: true}, nil
	}
	return key, AttrFilter{Value: value}, nil
}

// ContainerSpec is the two-level selector locating content on a page:
// Parent picks container elements and Child picks the targets inside them.
type ContainerSpec struct {
	Parent ElementSpec `yaml:"parent"`
	Child  ElementSpec `yaml:"child"`

	// Source is the attribute holding the URL of an image target.
	Source string `yaml:"source,omitempty"`
}

// IsZero reports whether no spec was configured.
func (c ContainerSpec) IsZero() bool {
	return c.Parent.IsZero() && c.Child.IsZero()
}

// SourceAttr returns the configured source attribute or "src".
func (c ContainerSpec) SourceAttr() string {
	if c.Source != "" {
		return c.Source
	}
	return DefaultSourceAttr
}

// String renders the spec as "parent > child".
func (c ContainerSpec) String() string {
	return c.Parent.String() + " > " + c.Child.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
