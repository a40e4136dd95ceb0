package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitecrawl/internal/model"
)

// ExtractLinks returns the normalized same-domain targets linked from doc.
//
// current is the URL the document was served from; relative, rooted and
// protocol-relative hrefs are resolved against it. Empty hrefs, fragment-only
// hrefs, pseudo URLs such as javascript: and links to other hosts are
// dropped. The result has no duplicates and keeps document order.
func ExtractLinks(current string, doc *goquery.Document, domain string) []string {
	base, err := url.Parse(current)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(getAttr(s.Nodes[0], "href"))
		if skipHref(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if !model.SameDomain(resolved, domain) {
			return
		}

		target, err := model.NormalizeURL(resolved)
		if err != nil {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		links = append(links, target)
	})

	return links
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(href), "javascript:")
}
