// Package discourse post-processes the cooked HTML of a forum post after it
// has been rendered from its source markup. It absolutizes and measures
// embedded images, links them to stored uploads, wraps large images in
// lightbox markup, expands bare-URL links into onebox previews, and reports
// whether the markup changed so the caller can decide whether to persist it.
package discourse

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// Post is the unit of work: an already-cooked post body plus the identifiers
// needed to link uploads and record a topic image.
type Post struct {
	ID         int64
	TopicID    int64
	PostNumber int
	Cooked     string
}

// ImageSize is a pixel width/height pair.
type ImageSize struct {
	Width  int
	Height int
}

// ProcessOptions carries per-run inputs.
type ProcessOptions struct {
	// ImageSizes holds dimensions captured at submission time, keyed by
	// image URL. Entries here take precedence over remote probes.
	ImageSizes map[string]ImageSize
}

// Result is the outcome of one processing run.
type Result struct {
	// Dirty reports whether any mutation occurred; the caller should persist
	// HTML only when it is set.
	Dirty bool
	HTML  string
}

// Processor rewrites cooked posts. All collaborators are optional; a missing
// collaborator degrades the corresponding step to a no-op.
type Processor struct {
	cfg         Config
	uploads     UploadStore
	postUploads PostUploadStore
	thumbnails  Thumbnailer
	topicImages TopicImageSink
	prober      SizeProber
	onebox      OneboxResolver
}

// ProcessorOption wires a collaborator into a Processor.
type ProcessorOption func(*Processor)

// WithUploadStore sets the store used to resolve image URLs to uploads.
func WithUploadStore(s UploadStore) ProcessorOption {
	return func(p *Processor) { p.uploads = s }
}

// WithPostUploads sets the store recording post-to-upload associations.
func WithPostUploads(s PostUploadStore) ProcessorOption {
	return func(p *Processor) { p.postUploads = s }
}

// WithThumbnailer sets the fire-and-forget thumbnail generator.
func WithThumbnailer(t Thumbnailer) ProcessorOption {
	return func(p *Processor) { p.thumbnails = t }
}

// WithTopicImages sets the sink that records a topic's representative image.
func WithTopicImages(s TopicImageSink) ProcessorOption {
	return func(p *Processor) { p.topicImages = s }
}

// WithSizeProber sets the remote dimension prober.
func WithSizeProber(pr SizeProber) ProcessorOption {
	return func(p *Processor) { p.prober = pr }
}

// WithOnebox sets the resolver used to expand bare-URL links into previews.
func WithOnebox(r OneboxResolver) ProcessorOption {
	return func(p *Processor) { p.onebox = r }
}

// NewProcessor builds a Processor with the given policy and collaborators.
func NewProcessor(cfg Config, opts ...ProcessorOption) *Processor {
	cfg.setDefaults()
	p := &Processor{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the state of one processing pass: the parsed document, the
// run-scoped dimension cache and the dirty accumulator. It is discarded when
// Process returns.
type run struct {
	p         *Processor
	root      *html.Node
	post      Post
	overrides map[string]ImageSize
	sizeCache map[string]*ImageSize
	dirty     bool
}

// Process rewrites the cooked HTML of post and reports whether it changed.
// Collaborator failures degrade to "no result" for the affected image and
// never abort the run.
func (p *Processor) Process(post Post, opts ProcessOptions) Result {
	if strings.TrimSpace(post.Cooked) == "" {
		return Result{Dirty: false, HTML: post.Cooked}
	}

	root, err := parseFragment(post.Cooked)
	if err != nil {
		fmt.Fprintf(p.cfg.Log, "Warning: could not parse cooked post %d: %v\n", post.ID, err)
		return Result{Dirty: false, HTML: post.Cooked}
	}

	r := &run{
		p:         p,
		root:      root,
		post:      post,
		overrides: opts.ImageSizes,
		sizeCache: map[string]*ImageSize{},
	}

	r.processImages()

	if p.onebox != nil && applyOneboxes(root, p.onebox) {
		r.dirty = true
	}

	out, err := renderFragment(root)
	if err != nil {
		r.warnf("could not serialize post %d: %v", post.ID, err)
		return Result{Dirty: false, HTML: post.Cooked}
	}
	return Result{Dirty: r.dirty, HTML: out}
}

func (r *run) warnf(format string, args ...any) {
	fmt.Fprintf(r.p.cfg.Log, "Warning: "+format+"\n", args...)
}

// srcOf reads the current src attribute of an image node.
func srcOf(img *html.Node) string {
	return dom.GetAttributeOr(img, "src", "")
}
