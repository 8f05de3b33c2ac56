package discourse

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// makePNG creates a solid-color PNG image at the given dimensions.
func makePNG(w, h int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// fakeProber serves canned sizes and counts probes per URL.
type fakeProber struct {
	mu    sync.Mutex
	sizes map[string]ImageSize
	calls map[string]int
}

func (f *fakeProber) ProbeSize(url string) (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	s, ok := f.sizes[url]
	if !ok {
		return 0, 0, false
	}
	return s.Width, s.Height, true
}

func (f *fakeProber) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// fakeUploads is an in-memory UploadStore.
type fakeUploads struct {
	byID  map[int64]*Upload
	byURL map[string]*Upload
	// objectStore marks URLs that look like object-store references.
	objectStore map[string]bool
}

func (f *fakeUploads) FindByID(id int64) (*Upload, error)    { return f.byID[id], nil }
func (f *fakeUploads) FindByURL(url string) (*Upload, error) { return f.byURL[url], nil }
func (f *fakeUploads) IsObjectStoreURL(url string) bool      { return f.objectStore[url] }
func (f *fakeUploads) IsKnownUploadURL(url string) bool {
	return localUploadRe.MatchString(url) || f.objectStore[url]
}

// fakeAssocs records (post, upload) associations in memory.
type fakeAssocs struct {
	pairs       map[[2]int64]bool
	createCalls int
}

func (f *fakeAssocs) Create(postID, uploadID int64) error {
	if f.pairs == nil {
		f.pairs = map[[2]int64]bool{}
	}
	f.createCalls++
	f.pairs[[2]int64{postID, uploadID}] = true
	return nil
}

func (f *fakeAssocs) Exists(postID, uploadID int64) (bool, error) {
	return f.pairs[[2]int64{postID, uploadID}], nil
}

// fakeTopicImages records SetTopicImage calls.
type fakeTopicImages struct {
	topicID int64
	url     string
	calls   int
}

func (f *fakeTopicImages) SetTopicImage(topicID int64, url string) error {
	f.calls++
	f.topicID = topicID
	f.url = url
	return nil
}

// fakeThumbs records scheduled uploads.
type fakeThumbs struct {
	scheduled []*Upload
}

func (f *fakeThumbs) EnsureThumbnail(u *Upload) {
	f.scheduled = append(f.scheduled, u)
}
