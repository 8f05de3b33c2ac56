// Local thumbnail generation. The pipeline only schedules work here; the
// actual downscale runs on a background worker so a cook never waits on
// image encoding.
package discourse

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"
)

const thumbnailJPEGQuality = 80

// ThumbnailSink records a generated thumbnail URL against its upload, so
// later cooks can substitute it. *Store implements this.
type ThumbnailSink interface {
	SetUploadThumbnail(uploadID int64, url string) error
}

// LocalThumbnailer generates downscaled JPEG thumbnails for uploads on a
// single background worker. EnsureThumbnail never blocks: when the queue is
// full the request is dropped and a later cook retries.
type LocalThumbnailer struct {
	// Client fetches the upload's original bytes. Defaults to the crawl
	// client with a 30s timeout.
	Client *http.Client
	// Dir receives the generated JPEG files.
	Dir string
	// URLPrefix is joined with the generated filename to form the recorded
	// thumbnail URL, e.g. "/uploads/thumbnails".
	URLPrefix string
	// MaxWidth is the thumbnail pixel width. Originals at or below it are
	// skipped.
	MaxWidth int
	Sink     ThumbnailSink
	Log      io.Writer

	startOnce sync.Once
	queue     chan *Upload
	wg        sync.WaitGroup
}

// EnsureThumbnail schedules thumbnail generation for u. Uploads that already
// have a thumbnail are ignored.
func (t *LocalThumbnailer) EnsureThumbnail(u *Upload) {
	if u == nil || u.ThumbnailURL != "" {
		return
	}
	t.startOnce.Do(t.start)
	select {
	case t.queue <- u:
	default:
		t.warnf("thumbnail queue full, dropping upload %d", u.ID)
	}
}

// Close stops accepting work and waits for the worker to drain the queue.
func (t *LocalThumbnailer) Close() {
	t.startOnce.Do(t.start)
	close(t.queue)
	t.wg.Wait()
}

func (t *LocalThumbnailer) start() {
	t.queue = make(chan *Upload, 64)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for u := range t.queue {
			if err := t.generate(u); err != nil {
				t.warnf("thumbnail for upload %d: %v", u.ID, err)
			}
		}
	}()
}

func (t *LocalThumbnailer) generate(u *Upload) error {
	client := t.Client
	if client == nil {
		client = newCrawlClient(30 * time.Second)
	}

	resp, err := client.Get(u.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, u.URL)
	}

	src, _, err := image.Decode(resp.Body)
	if err != nil {
		return fmt.Errorf("decode %s: %w", u.URL, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if t.MaxWidth <= 0 || w <= t.MaxWidth {
		return nil
	}
	newH := h * t.MaxWidth / w
	if newH < 1 {
		newH = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, t.MaxWidth, newH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	name := fmt.Sprintf("%d_%dx%d.jpg", u.ID, t.MaxWidth, newH)
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(t.Dir, name), buf.Bytes(), 0o644); err != nil {
		return err
	}

	if t.Sink != nil {
		thumbURL := t.URLPrefix
		if thumbURL != "" && thumbURL[len(thumbURL)-1] != '/' {
			thumbURL += "/"
		}
		thumbURL += name
		if err := t.Sink.SetUploadThumbnail(u.ID, thumbURL); err != nil {
			return fmt.Errorf("recording thumbnail: %w", err)
		}
	}
	return nil
}

func (t *LocalThumbnailer) warnf(format string, args ...any) {
	if t.Log == nil {
		return
	}
	fmt.Fprintf(t.Log, "Warning: "+format+"\n", args...)
}
