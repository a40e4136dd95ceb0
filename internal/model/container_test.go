package model

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// firstElement parses markup and returns the first element with the given tag.
func firstElement(t *testing.T, markup, tag string) *html.Node {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}

	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		t.Fatalf("no <%s> element in %q", tag, markup)
	}
	return found
}

// TestParseElementSpec tests the compact selector syntax.
func TestParseElementSpec(t *testing.T) {
	t.Parallel()

	t.Run("tag only", func(t *testing.T) {
		t.Parallel()

		spec, err := ParseElementSpec("p")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if spec.Tag != "p" || len(spec.Attrs) != 0 {
			t.Errorf("unexpected spec: %+v", spec)
		}
	})

	t.Run("value, presence and absence filters", func(t *testing.T) {
		t.Parallel()

		spec, err := ParseElementSpec(`img[class=photo][src][!data-lazy]`)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if spec.Tag != "img" {
			t.Errorf("expected tag img, got %q", spec.Tag)
		}
		if spec.Attrs["class"].Value != "photo" {
			t.Errorf("expected class=photo, got %+v", spec.Attrs["class"])
		}
		if !spec.Attrs["src"].Present {
			t.Errorf("expected src presence filter, got %+v", spec.Attrs["src"])
		}
		if !spec.Attrs["data-lazy"].Absent {
			t.Errorf("expected data-lazy absence filter, got %+v", spec.Attrs["data-lazy"])
		}
	})

	t.Run("quoted value with brackets", func(t *testing.T) {
		t.Parallel()

		spec, err := ParseElementSpec(`a[title="see [1] here"]`)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if spec.Attrs["title"].Value != "see [1] here" {
			t.Errorf("expected quoted value, got %q", spec.Attrs["title"].Value)
		}
	})

	t.Run("round trips through String", func(t *testing.T) {
		t.Parallel()

		spec, err := ParseElementSpec(`div[class="post-body"][id]`)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		again, err := ParseElementSpec(spec.String())
		if err != nil {
			t.Fatalf("failed to parse %q: %v", spec.String(), err)
		}
		if again.String() != spec.String() {
			t.Errorf("expected %q, got %q", spec.String(), again.String())
		}
	})

	for _, bad := range []string{"", "div[class=x", "div]", "div[=x]", `div[a="x]`, "my div"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseElementSpec(bad); !errors.Is(err, ErrInvalidElementSpec) {
				t.Errorf("expected ErrInvalidElementSpec for %q, got %v", bad, err)
			}
		})
	}
}

// TestElementSpecMatches tests element matching.
func TestElementSpecMatches(t *testing.T) {
	t.Parallel()

	div := firstElement(t, `<div class="post post-body wide" id="main">x</div>`, "div")

	tests := []struct {
		name string
		spec string
		want bool
	}{
		{"tag", "div", true},
		{"other tag", "span", false},
		{"any tag", "*[id=main]", true},
		{"class token", "div[class=post-body]", true},
		{"full class value", `div[class="post post-body wide"]`, true},
		{"class token missing", "div[class=sidebar]", false},
		{"present attribute", "div[id]", true},
		{"missing attribute", "div[title]", false},
		{"absent attribute", "div[!title]", true},
		{"absent attribute violated", "div[!id]", false},
		{"exact value", "div[id=main]", true},
		{"wrong value", "div[id=other]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec, err := ParseElementSpec(tt.spec)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", tt.spec, err)
			}
			if got := spec.Matches(div); got != tt.want {
				t.Errorf("%s: expected %v, got %v", tt.spec, tt.want, got)
			}
		})
	}

	t.Run("tag match ignores case", func(t *testing.T) {
		t.Parallel()

		if !(ElementSpec{Tag: "DIV"}).Matches(div) {
			t.Error("expected DIV to match div")
		}
	})

	t.Run("nil node", func(t *testing.T) {
		t.Parallel()

		if (ElementSpec{Tag: "div"}).Matches(nil) {
			t.Error("expected nil node not to match")
		}
	})
}

// TestContainerSpecYAML tests YAML decoding of container specs.
func TestContainerSpecYAML(t *testing.T) {
	t.Parallel()

	input := `
parent:
  tag: div
  attrs:
    class: content
child:
  tag: img
  attrs:
    src: true
    data-ad: false
source: data-src
`
	var spec ContainerSpec
	if err := yaml.Unmarshal([]byte(input), &spec); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if spec.Parent.Tag != "div" || spec.Parent.Attrs["class"].Value != "content" {
		t.Errorf("unexpected parent: %+v", spec.Parent)
	}
	if !spec.Child.Attrs["src"].Present {
		t.Errorf("expected src: true to decode as presence, got %+v", spec.Child.Attrs["src"])
	}
	if !spec.Child.Attrs["data-ad"].Absent {
		t.Errorf("expected data-ad: false to decode as absence, got %+v", spec.Child.Attrs["data-ad"])
	}
	if spec.SourceAttr() != "data-src" {
		t.Errorf("expected source data-src, got %q", spec.SourceAttr())
	}

	t.Run("re-encodes", func(t *testing.T) {
		t.Parallel()

		out, err := yaml.Marshal(spec)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		var back ContainerSpec
		if err := yaml.Unmarshal(out, &back); err != nil {
			t.Fatalf("failed to decode re-encoded spec: %v", err)
		}
		if back.String() != spec.String() {
			t.Errorf("expected %q, got %q", spec.String(), back.String())
		}
	})

	t.Run("compact form", func(t *testing.T) {
		t.Parallel()

		var compact ContainerSpec
		if err := yaml.Unmarshal([]byte("parent: div[class=post-body]\nchild: p\n"), &compact); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if compact.Parent.Tag != "div" || compact.Parent.Attrs["class"].Value != "post-body" || compact.Child.Tag != "p" {
			t.Errorf("unexpected spec: %s", compact)
		}

		var bad ContainerSpec
		if err := yaml.Unmarshal([]byte("parent: div[class\n"), &bad); !errors.Is(err, ErrInvalidElementSpec) {
			t.Errorf("expected ErrInvalidElementSpec, got %v", err)
		}
	})

	t.Run("source defaults to src", func(t *testing.T) {
		t.Parallel()

		if (ContainerSpec{}).SourceAttr() != DefaultSourceAttr {
			t.Error("expected default source attribute")
		}
	})
}
