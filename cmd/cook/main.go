// cook: post-process a cooked (or markdown) post fragment.
//
//	cook [options] [file]
//
// Reads an HTML fragment from file (or stdin), runs the cooked-post
// processor over it and writes the result to stdout. With -markdown the
// input is cooked from markdown first.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/AndreKR/discourse"
)

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func run() error {
	baseURL := flag.String("base-url", "", "Site base URL for absolutizing root-relative image sources")
	autoLinkWidth := flag.Int("auto-link-width", 690, "Wrap images wider than this many px in lightbox markup")
	maxDimension := flag.Int("max-render-dimension", 0, "Clamp resolved image dimensions to this many px (0 = off)")
	crawl := flag.Bool("crawl-images", false, "Allow dimension probes of images that are not local uploads")
	dbPath := flag.String("db", "", "SQLite database with upload records (optional)")
	objectStore := flag.String("object-store-url", "", "Base URL of the external object store (optional)")
	thumbDir := flag.String("thumbnail-dir", "", "Generate thumbnails for linked uploads into this directory (requires -db)")
	thumbWidth := flag.Int("thumbnail-width", 690, "Thumbnail pixel width")
	markdown := flag.Bool("markdown", false, "Treat input as markdown and cook it first")
	oneboxes := flag.Bool("oneboxes", false, "Expand bare links into onebox previews (fetches remote pages)")
	postID := flag.Int64("post", 0, "Post id for upload associations")
	topicID := flag.Int64("topic", 0, "Topic id for the representative image")
	postNumber := flag.Int("post-number", 1, "Position of the post within its topic")
	timeout := flag.Duration("timeout", 10*time.Second, "HTTP timeout for probes and previews")
	output := flag.String("o", "", "Output file (default: stdout)")
	silent := flag.Bool("silent", false, "Suppress warnings")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cook [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Post-process a cooked post fragment (images, lightboxes, oneboxes).\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	input, err := readInput(flag.Args())
	if err != nil {
		return err
	}

	if *markdown {
		md := goldmark.New(goldmark.WithExtensions(extension.Linkify))
		var buf bytes.Buffer
		if err := md.Convert(input, &buf); err != nil {
			return fmt.Errorf("cooking markdown: %w", err)
		}
		input = buf.Bytes()
	}

	cfg := discourse.Config{
		BaseURL:                *baseURL,
		AutoLinkThresholdWidth: *autoLinkWidth,
		MaxRenderDimension:     *maxDimension,
		AllowRemoteCrawl:       *crawl,
	}
	if !*silent {
		cfg.Log = os.Stderr
	}

	opts := []discourse.ProcessorOption{
		discourse.WithSizeProber(discourse.NewHTTPSizeProber(*timeout)),
	}

	if *dbPath != "" {
		store, err := discourse.NewStore(*dbPath, *objectStore)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()
		opts = append(opts,
			discourse.WithUploadStore(store),
			discourse.WithPostUploads(store),
			discourse.WithTopicImages(store),
		)
		if *thumbDir != "" {
			thumbnailer := &discourse.LocalThumbnailer{
				Dir:       *thumbDir,
				URLPrefix: "/uploads/thumbnails",
				MaxWidth:  *thumbWidth,
				Sink:      store,
			}
			if !*silent {
				thumbnailer.Log = os.Stderr
			}
			defer thumbnailer.Close()
			opts = append(opts, discourse.WithThumbnailer(thumbnailer))
		}
	}

	if *oneboxes {
		previewer := discourse.NewLinkPreviewer(*timeout)
		opts = append(opts, discourse.WithOnebox(previewer.Resolve))
	}

	processor := discourse.NewProcessor(cfg, opts...)
	result := processor.Process(discourse.Post{
		ID:         *postID,
		TopicID:    *topicID,
		PostNumber: *postNumber,
		Cooked:     string(input),
	}, discourse.ProcessOptions{})

	if !*silent {
		fmt.Fprintf(os.Stderr, "dirty: %v\n", result.Dirty)
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(result.HTML), 0o644)
	}
	_, err = os.Stdout.WriteString(result.HTML)
	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
