// Remote dimension probing. Only the image header is needed to read pixel
// dimensions, so probes download a bounded prefix of the resource.
package discourse

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
)

// maxProbeBytes caps how much of a remote image a probe downloads. Every
// supported format stores its dimensions well within this prefix.
const maxProbeBytes = 256 * 1024

// HTTPSizeProber implements SizeProber over HTTP. The zero value is usable;
// NewHTTPSizeProber wires in the hardened crawl client.
type HTTPSizeProber struct {
	// Client performs the requests. Defaults to http.DefaultClient.
	Client *http.Client
	// UserAgent overrides the crawl user agent when non-empty.
	UserAgent string
}

// NewHTTPSizeProber returns a prober backed by the browser-fingerprint crawl
// client with its private-IP dial guard.
func NewHTTPSizeProber(timeout time.Duration) *HTTPSizeProber {
	return &HTTPSizeProber{Client: newCrawlClient(timeout)}
}

// ProbeSize fetches the image at rawURL and decodes its header. Any failure,
// including a malformed or truncated stream, is reported as "size unknown".
func (p *HTTPSizeProber) ProbeSize(rawURL string) (int, int, bool) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, false
	}
	ua := p.UserAgent
	if ua == "" {
		ua = crawlUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, false
	}

	// Read the prefix fully before decoding. Oversized bodies are fine:
	// only the header matters, so the rest is simply not downloaded.
	head, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBytes))
	if err != nil && len(head) == 0 {
		return 0, 0, false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(head))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
