package bandcamp

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// findDataBlob returns the data-blob attribute of the element with the
// given id, or "" when the page has none.
func findDataBlob(body []byte, id string) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	node := findByID(doc, id)
	if node == nil {
		return ""
	}
	return attr(node, "data-blob")
}

// extractTagAnchors returns the trimmed text of every <a> whose class list
// contains "tag". Bandcamp renders item tags that way.
func extractTagAnchors(body []byte) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if !hasClass(n, "tag") {
			return
		}
		if text := strings.TrimSpace(textContent(n)); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// extractFanLinks returns usernames from anchors pointing at fan profile
// pages, the fallback supporters source when the collectors blob is
// missing. Non-fan paths are filtered out.
func extractFanLinks(body []byte) []string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if !strings.Contains(attr(n, "class"), "fan") {
			return
		}
		if username := usernameFromHref(attr(n, "href")); username != "" {
			out = append(out, username)
		}
	})
	return out
}

// usernameFromHref pulls the fan username out of an href like
// https://bandcamp.com/username?from=fanthanks.
func usernameFromHref(href string) string {
	const marker = "bandcamp.com/"
	i := strings.Index(href, marker)
	if i < 0 {
		return ""
	}
	rest := href[i+len(marker):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	switch rest {
	case "", "artists", "music", "merch", "community", "partner",
		"signup", "login", "help", "settings", "compliments", "discover",
		"album", "track", "EmbeddedPlayer":
		return ""
	}
	return rest
}

// walk visits every node in the tree.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findByID returns the first node with the given id attribute.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether the node's class list contains the given class.
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent concatenates all text under the node.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
