// Onebox expansion: bare URLs pasted on their own line become rich preview
// blocks. The document walk lives here; rendering a preview for a URL is the
// resolver's job, so callers can plug in their own fetch/cache/render logic.
package discourse

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "codeberg.org/readeck/go-readability"
	"github.com/JohannesKaufmann/dom"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// OneboxResolver renders preview markup for a bare URL. An empty return
// leaves the link untouched.
type OneboxResolver func(url string, node *html.Node) string

// applyOneboxes replaces standalone bare-URL links in the document with the
// preview markup produced by resolve. Reports whether anything changed.
func applyOneboxes(root *html.Node, resolve OneboxResolver) bool {
	if resolve == nil {
		return false
	}
	changed := false
	for _, link := range findBareLinks(root) {
		markup := resolve(dom.GetAttributeOr(link, "href", ""), link)
		if markup == "" {
			continue
		}
		frag, err := parseFragment(markup)
		if err != nil || frag.FirstChild == nil {
			continue
		}
		parent := link.Parent
		for c := frag.FirstChild; c != nil; {
			next := c.NextSibling
			frag.RemoveChild(c)
			parent.InsertBefore(c, link)
			c = next
		}
		parent.RemoveChild(link)
		changed = true
	}
	return changed
}

// findBareLinks collects anchors that are a URL pasted on its own line: the
// link text matches the href and nothing else shares the enclosing block.
func findBareLinks(root *html.Node) []*html.Node {
	var links []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if isBareLink(n) {
				links = append(links, n)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return links
}

func isBareLink(a *html.Node) bool {
	href := dom.GetAttributeOr(a, "href", "")
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return false
	}
	t := a.FirstChild
	if t == nil || t.Type != html.TextNode || t.NextSibling != nil {
		return false
	}
	if strings.TrimSpace(t.Data) != href {
		return false
	}
	if a.Parent == nil {
		return false
	}
	for s := a.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s == a {
			continue
		}
		if s.Type == html.TextNode && strings.TrimSpace(s.Data) == "" {
			continue
		}
		return false
	}
	return true
}

// maxPreviewBytes caps how much of a page the previewer downloads. Titles
// and article content live near the top of any reasonable document.
const maxPreviewBytes = 2 * 1024 * 1024

const previewExcerptLen = 250

// LinkPreviewer is an OneboxResolver that fetches the target page and
// renders an excerpt preview. Results, including failures, are cached for
// the lifetime of the previewer so repeated cooks of the same URL cost one
// fetch.
type LinkPreviewer struct {
	// Client performs the requests. Defaults to the hardened crawl client
	// when the previewer is built with NewLinkPreviewer.
	Client    *http.Client
	UserAgent string

	mu    sync.Mutex
	cache map[string]string
}

// NewLinkPreviewer returns a previewer backed by the browser-fingerprint
// crawl client.
func NewLinkPreviewer(timeout time.Duration) *LinkPreviewer {
	return &LinkPreviewer{Client: newCrawlClient(timeout)}
}

// Resolve renders preview markup for rawURL, or "" when no preview could be
// built. Safe for concurrent use.
func (l *LinkPreviewer) Resolve(rawURL string, _ *html.Node) string {
	l.mu.Lock()
	if l.cache == nil {
		l.cache = map[string]string{}
	}
	if cached, ok := l.cache[rawURL]; ok {
		l.mu.Unlock()
		return cached
	}
	l.mu.Unlock()

	markup := l.build(rawURL)

	l.mu.Lock()
	l.cache[rawURL] = markup
	l.mu.Unlock()
	return markup
}

func (l *LinkPreviewer) build(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ""
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	ua := l.UserAgent
	if ua == "" {
		ua = crawlUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := readLimited(resp.Body, maxPreviewBytes)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil || article.Title == "" {
		return ""
	}

	return renderOnebox(parsed, article.Title, excerptOf(article.Content))
}

// excerptOf flattens article HTML into a short plain-text excerpt.
func excerptOf(content string) string {
	md, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(md), " ")
	if len(text) > previewExcerptLen {
		cut := strings.LastIndex(text[:previewExcerptLen], " ")
		if cut <= 0 {
			cut = previewExcerptLen
		}
		text = text[:cut] + "…"
	}
	return text
}

func renderOnebox(u *url.URL, title, excerpt string) string {
	var b strings.Builder
	link := html.EscapeString(u.String())
	fmt.Fprintf(&b, `<aside class="onebox"><header class="source"><a href="%s">%s</a></header>`,
		link, html.EscapeString(u.Host))
	fmt.Fprintf(&b, `<article class="onebox-body"><h3><a href="%s">%s</a></h3>`,
		link, html.EscapeString(title))
	if excerpt != "" {
		fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(excerpt))
	}
	b.WriteString(`</article></aside>`)
	return b.String()
}
