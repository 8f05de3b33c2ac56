// DOM helpers for the cooked-HTML fragment: fragment parse/serialize,
// attribute mutation, and bounded tree walks.
package discourse

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxAncestorDepth bounds parent-chain walks so a malformed tree can never
// loop forever. No sane cooked post nests this deep.
const maxAncestorDepth = 200

// parseFragment parses a cooked HTML fragment into a detached body element
// whose children are the fragment's top-level nodes.
func parseFragment(cooked string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(cooked), ctx)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// renderFragment serializes the children of root back into an HTML string.
func renderFragment(root *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// attrInt parses an attribute as a non-negative integer, defaulting to 0.
func attrInt(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(dom.GetAttributeOr(n, key, "")))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// insideElement reports whether n has an ancestor matching pred. The walk is
// depth-bounded; hitting the bound counts as a match, so callers treat a node
// whose ancestry cannot be trusted the same as a positive.
func insideElement(n *html.Node, pred func(*html.Node) bool) bool {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		depth++
		if depth > maxAncestorDepth {
			return true
		}
		if p.Type == html.ElementNode && pred(p) {
			return true
		}
	}
	return false
}

// isOneboxNode reports whether the element is a rendered onebox embed.
func isOneboxNode(n *html.Node) bool {
	for _, t := range strings.Fields(dom.GetAttributeOr(n, "class", "")) {
		if t == "onebox" || t == "onebox-result" {
			return true
		}
	}
	return false
}

// findImages returns every inline image in document order, excluding images
// that sit inside already-rendered onebox embeds.
func findImages(root *html.Node) []*html.Node {
	var imgs []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isOneboxNode(n) {
				return
			}
			if n.DataAtom == atom.Img {
				imgs = append(imgs, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return imgs
}

func elem(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func span(class, content string) *html.Node {
	s := elem("span", html.Attribute{Key: "class", Val: class})
	if content != "" {
		s.AppendChild(textNode(content))
	}
	return s
}
