package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const schemeSeparator = "://"

// RewriteExternalLinks sets target="_blank" on every anchor whose href
// contains a scheme separator. An existing target is replaced, so running the
// rewrite twice yields the same markup.
//
// The scheme check runs on the parsed href, so character references such as
// "https&#58;//" are caught. Markup without any anchor tag is returned as is.
func RewriteExternalLinks(markup string) (string, error) {
	if !hasAnchorTag(markup) {
		return markup, nil
	}
	nodes, err := parseFragment(markup)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			if el.DataAtom != atom.A || !isExternal(getAttr(el, "href")) {
				return
			}
			setAttr(el, "target", "_blank")
		})
	}
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("render fragment: %w", err)
		}
	}
	return b.String(), nil
}

// ExternalLinks lists the hrefs that RewriteExternalLinks would mark, in
// document order without duplicates.
func ExternalLinks(markup string) []string {
	nodes, err := parseFragment(markup)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			href := getAttr(el, "href")
			if el.DataAtom != atom.A || !isExternal(href) || seen[href] {
				return
			}
			seen[href] = true
			out = append(out, href)
		})
	}
	return out
}

// hasAnchorTag reports whether markup may contain an <a> element. Tag names
// cannot be written as character references, so a literal "<a" is required.
func hasAnchorTag(markup string) bool {
	lower := strings.ToLower(markup)
	for i := strings.Index(lower, "<a"); i >= 0; i = strings.Index(lower, "<a") {
		rest := lower[i+2:]
		if rest == "" || strings.ContainsRune(" \t\n\r\f/>", rune(rest[0])) {
			return true
		}
		lower = rest
	}
	return false
}

func isExternal(href string) bool {
	return strings.Contains(href, schemeSeparator)
}

func parseFragment(markup string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	kept := n.Attr[:0]
	found := false
	for _, attr := range n.Attr {
		if attr.Key != key {
			kept = append(kept, attr)
			continue
		}
		if found {
			continue
		}
		attr.Val = val
		kept = append(kept, attr)
		found = true
	}
	if !found {
		kept = append(kept, html.Attribute{Key: key, Val: val})
	}
	n.Attr = kept
}
