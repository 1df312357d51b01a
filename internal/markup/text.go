package markup

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// ToMarkdown flattens an HTML fragment into markdown suitable for a terminal
// renderer. Text that is already markdown passes through unchanged.
func ToMarkdown(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var sb strings.Builder
	for _, n := range nodes {
		extractText(n, &sb, 0)
	}
	return clean(sb.String())
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 50 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if isPre(n.Parent) {
			sb.WriteString(n.Data)
			return
		}
		sb.WriteString(whitespace.ReplaceAllString(n.Data, " "))
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg":
			return
		case "h1":
			sb.WriteString("\n\n# ")
		case "h2":
			sb.WriteString("\n\n## ")
		case "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n### ")
		case "p", "div":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "code":
			if !isPre(n.Parent) {
				sb.WriteString("`")
			}
		case "pre":
			sb.WriteString("\n\n```\n")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "a":
			if href := getAttr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				sb.WriteString("[")
			}
		case "img":
			if alt := getAttr(n, "alt"); alt != "" {
				fmt.Fprintf(sb, "[image: %s]", alt)
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type != html.ElementNode {
		return
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		sb.WriteString("\n\n")
	case "code":
		if !isPre(n.Parent) {
			sb.WriteString("`")
		}
	case "pre":
		sb.WriteString("\n```\n\n")
	case "strong", "b":
		sb.WriteString("**")
	case "em", "i":
		sb.WriteString("*")
	case "a":
		if href := getAttr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			fmt.Fprintf(sb, "](%s)", href)
		}
	}
}

func isPre(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "pre" {
			return true
		}
	}
	return false
}

func clean(s string) string {
	s = multiNewline.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			lines[i] = strings.TrimSpace(line)
			continue
		}
		if inFence {
			continue
		}
		lines[i] = strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
