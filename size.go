// Dimension resolution: submission-time overrides, the run-scoped probe
// cache, and the max-dimension clamp.
package discourse

import (
	"net/url"
	"strings"
)

// resolveSize determines the display size for src, preferring dimensions
// captured at submission time over a remote probe. The result is clamped;
// nil means dimensions are unavailable.
func (r *run) resolveSize(src string) *ImageSize {
	if s, ok := r.overrideFor(src); ok {
		c := clampSize(s.Width, s.Height, r.p.cfg.MaxRenderDimension)
		return &c
	}
	if s := r.rawSize(src); s != nil {
		c := clampSize(s.Width, s.Height, r.p.cfg.MaxRenderDimension)
		return &c
	}
	return nil
}

// overrideFor looks src up in the caller-supplied size table. Clients key
// the table by the URL as submitted, which may be a fragment of the
// absolutized src, so an exact match is tried first and a substring match
// second.
func (r *run) overrideFor(src string) (ImageSize, bool) {
	if len(r.overrides) == 0 {
		return ImageSize{}, false
	}
	if s, ok := r.overrides[src]; ok && s.Width > 0 && s.Height > 0 {
		return s, true
	}
	for key, s := range r.overrides {
		if s.Width > 0 && s.Height > 0 && (strings.Contains(src, key) || strings.Contains(key, src)) {
			return s, true
		}
	}
	return ImageSize{}, false
}

// rawSize returns the unclamped pixel size of the image at src, probing the
// remote resource at most once per distinct URL per run. Every outcome,
// including failure, is cached for the rest of the run.
func (r *run) rawSize(src string) *ImageSize {
	if s, ok := r.sizeCache[src]; ok {
		return s
	}
	r.sizeCache[src] = nil

	probeURL := src
	// Object-store references are scheme-relative; a probe needs a scheme.
	if strings.HasPrefix(probeURL, "//") && r.p.uploads != nil && r.p.uploads.IsObjectStoreURL(probeURL) {
		probeURL = r.p.cfg.DefaultScheme + ":" + probeURL
	}

	u, err := url.Parse(probeURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}
	if !r.p.cfg.AllowRemoteCrawl && !(r.p.uploads != nil && r.p.uploads.IsKnownUploadURL(src)) {
		return nil
	}
	if r.p.prober == nil {
		return nil
	}

	w, h, ok := r.p.prober.ProbeSize(probeURL)
	if !ok || w <= 0 || h <= 0 {
		return nil
	}
	s := &ImageSize{Width: w, Height: h}
	r.sizeCache[src] = s
	return s
}

// clampSize scales (w, h) down preserving aspect ratio so the larger side
// equals max, but only when both sides exceed it. Fractional results are
// truncated.
func clampSize(w, h, max int) ImageSize {
	if max <= 0 || w <= max || h <= max {
		return ImageSize{Width: w, Height: h}
	}
	if w >= h {
		return ImageSize{Width: max, Height: h * max / w}
	}
	return ImageSize{Width: w * max / h, Height: max}
}
