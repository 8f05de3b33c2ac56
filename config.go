package discourse

import "io"

// Config holds the post-processing policy knobs.
type Config struct {
	// BaseURL is the site's canonical URL ("https://forum.example"), used to
	// absolutize root-relative image sources. Root-relative srcs are left
	// alone when it is empty.
	BaseURL string

	// AutoLinkThresholdWidth is the displayed width (in px) above which an
	// image qualifies for lightbox treatment. Zero wraps anything wider
	// than 0px whose original is larger than the displayed copy.
	AutoLinkThresholdWidth int

	// MaxRenderDimension clamps resolved dimensions: when both sides exceed
	// it, the image is scaled down so the larger side equals it. Zero
	// disables the clamp.
	MaxRenderDimension int

	// AllowRemoteCrawl permits size probes of images that are not known
	// uploads. When false only locally stored images are ever probed, so the
	// processor cannot be used as an open URL-probing oracle.
	AllowRemoteCrawl bool

	// DefaultScheme is prepended to scheme-relative object-store URLs before
	// probing. Defaults to "https".
	DefaultScheme string

	// Log receives warning lines for absorbed failures. Defaults to
	// io.Discard.
	Log io.Writer
}

func (c *Config) setDefaults() {
	if c.DefaultScheme == "" {
		c.DefaultScheme = "https"
	}
	if c.Log == nil {
		c.Log = io.Discard
	}
}
