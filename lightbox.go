// Lightbox conversion: large images become a link to their full-size
// original with caption metadata.
package discourse

import (
	"fmt"
	"net/url"
	"path"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// convertToLightbox wraps img in lightbox markup when the displayed copy is
// genuinely smaller than its source image and wide enough to matter.
//
// The resulting structure is
//
//	<div class="lightbox-wrapper">
//	  <a class="lightbox" href="{original src}">
//	    <img ...>
//	    <div class="meta">
//	      <span class="filename">...</span>
//	      <span class="informations">{w}x{h} {size}</span>
//	      <span class="expand"></span>
//	    </div>
//	  </a>
//	</div>
func (r *run) convertToLightbox(img *html.Node, upload *Upload) {
	src := srcOf(img)
	if src == "" {
		return
	}

	width := attrInt(img, "width")
	height := attrInt(img, "height")
	if width <= r.p.cfg.AutoLinkThresholdWidth {
		return
	}

	// Probe the source image itself, not any substituted variant. The probe
	// shares the run cache, so an image measured earlier costs nothing here.
	orig := r.rawSize(src)
	if orig == nil || orig.Width <= width || orig.Height <= height {
		return
	}

	if insideElement(img, func(n *html.Node) bool { return n.DataAtom == atom.A }) {
		return
	}

	if upload != nil && upload.ThumbnailURL != "" {
		setAttr(img, "src", upload.ThumbnailURL)
	}

	parent := img.Parent
	if parent == nil {
		return
	}

	wrapper := elem("div", html.Attribute{Key: "class", Val: "lightbox-wrapper"})
	link := elem("a",
		html.Attribute{Key: "class", Val: "lightbox"},
		html.Attribute{Key: "href", Val: src},
	)
	meta := elem("div", html.Attribute{Key: "class", Val: "meta"})
	meta.AppendChild(span("filename", lightboxFilename(src, upload)))
	meta.AppendChild(span("informations", lightboxInformations(orig, upload)))
	meta.AppendChild(span("expand", ""))

	parent.InsertBefore(wrapper, img)
	parent.RemoveChild(img)
	link.AppendChild(img)
	link.AppendChild(meta)
	wrapper.AppendChild(link)

	r.dirty = true
}

// lightboxFilename is the upload's stored original filename when known,
// falling back to the basename of the URL path.
func lightboxFilename(src string, upload *Upload) string {
	if upload != nil && upload.OriginalFilename != "" {
		return upload.OriginalFilename
	}
	u, err := url.Parse(src)
	if err != nil {
		return path.Base(src)
	}
	return path.Base(u.Path)
}

// lightboxInformations renders "{width}x{height}", with a humanized byte
// size appended when the upload metadata carries one.
func lightboxInformations(orig *ImageSize, upload *Upload) string {
	info := fmt.Sprintf("%dx%d", orig.Width, orig.Height)
	if upload != nil && upload.Filesize > 0 {
		info += " " + humanize.Bytes(uint64(upload.Filesize))
	}
	return info
}
