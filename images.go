// The image pass: absolutizes sources, fills in missing dimensions, links
// images to stored uploads and hands large images to the lightbox converter.
package discourse

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// processImages normalizes every inline image in document order, then
// records the topic's representative image when processing the first post.
func (r *run) processImages() {
	imgs := findImages(r.root)
	for _, img := range imgs {
		r.processImage(img)
	}

	if r.post.PostNumber == 1 && len(imgs) > 0 && r.p.topicImages != nil {
		if src := srcOf(imgs[0]); src != "" {
			if err := r.p.topicImages.SetTopicImage(r.post.TopicID, src); err != nil {
				r.warnf("recording topic image for topic %d: %v", r.post.TopicID, err)
			}
		}
	}
}

func (r *run) processImage(img *html.Node) {
	original := srcOf(img)
	src := r.absolutize(original)
	if src != original {
		setAttr(img, "src", src)
	}
	if src == "" {
		return
	}

	if !hasAttr(img, "width") || !hasAttr(img, "height") {
		if s := r.resolveSize(src); s != nil {
			setAttr(img, "width", strconv.Itoa(s.Width))
			setAttr(img, "height", strconv.Itoa(s.Height))
			r.dirty = true
		}
	}

	if u := r.findUpload(src); u != nil {
		r.associate(u)
		if r.p.thumbnails != nil {
			r.p.thumbnails.EnsureThumbnail(u)
		}
		setAttr(img, "src", optimizedImageURL(src, u))
		r.convertToLightbox(img, u)
	} else {
		r.convertToLightbox(img, nil)
	}

	if srcOf(img) != original {
		r.dirty = true
	}
}

// absolutize rewrites a root-relative src against the configured base URL.
// Protocol-relative srcs ("//cdn/x.png") pass through untouched.
func (r *run) absolutize(src string) string {
	if len(src) < 2 || src[0] != '/' || src[1] == '/' {
		return src
	}
	if r.p.cfg.BaseURL == "" {
		return src
	}
	return strings.TrimSuffix(r.p.cfg.BaseURL, "/") + src
}

// optimizedImageURL maps an upload's source URL to the variant served in the
// post body. It returns the URL unchanged until sized variants are generated
// out of band; the lightbox converter substitutes the thumbnail separately.
func optimizedImageURL(src string, _ *Upload) string {
	return src
}
