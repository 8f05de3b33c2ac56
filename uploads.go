// Collaborator contracts for upload storage, association tracking and the
// external side effects of a processing run.
package discourse

import (
	"regexp"
	"strconv"
)

// Upload is a stored file record, independent of any particular post.
type Upload struct {
	ID               int64
	URL              string
	OriginalFilename string
	Filesize         int64
	Width            int
	Height           int

	// ThumbnailURL is populated lazily, once a thumbnail has been generated.
	ThumbnailURL string
}

// UploadStore resolves image URLs to stored uploads.
type UploadStore interface {
	FindByID(id int64) (*Upload, error)
	FindByURL(url string) (*Upload, error)
	// IsKnownUploadURL reports whether the URL references a locally stored
	// upload. Such URLs may always be probed for dimensions.
	IsKnownUploadURL(url string) bool
	// IsObjectStoreURL reports whether the URL has the shape of this site's
	// object store.
	IsObjectStoreURL(url string) bool
}

// PostUploadStore records which posts reference which uploads.
type PostUploadStore interface {
	// Create records the association. A uniqueness conflict is success.
	Create(postID, uploadID int64) error
	Exists(postID, uploadID int64) (bool, error)
}

// Thumbnailer schedules thumbnail generation for an upload. Implementations
// must not block the processing pipeline.
type Thumbnailer interface {
	EnsureThumbnail(u *Upload)
}

// TopicImageSink records the representative image of a topic, taken from the
// first image of its first post.
type TopicImageSink interface {
	SetTopicImage(topicID int64, url string) error
}

// SizeProber determines the pixel dimensions of a remote image. A malformed
// or undecodable stream is "size unknown", never an error.
type SizeProber interface {
	ProbeSize(url string) (width, height int, ok bool)
}

// localUploadRe matches locally stored upload paths with the upload id
// embedded in the filename, e.g. "/uploads/default/42.png".
var localUploadRe = regexp.MustCompile(`/uploads/[a-z0-9_-]+/(\d+)\.[a-zA-Z0-9]+`)

// findUpload resolves src to a stored upload, or nil. A cheap pattern check
// runs before any storage query.
func (r *run) findUpload(src string) *Upload {
	if r.p.uploads == nil || src == "" {
		return nil
	}
	if m := localUploadRe.FindStringSubmatch(src); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil
		}
		u, err := r.p.uploads.FindByID(id)
		if err != nil {
			r.warnf("upload lookup by id %d: %v", id, err)
			return nil
		}
		return u
	}
	if r.p.uploads.IsObjectStoreURL(src) {
		u, err := r.p.uploads.FindByURL(src)
		if err != nil {
			r.warnf("upload lookup by url %s: %v", src, err)
			return nil
		}
		return u
	}
	return nil
}

// associate records the (post, upload) pair, once.
func (r *run) associate(u *Upload) {
	if r.p.postUploads == nil {
		return
	}
	exists, err := r.p.postUploads.Exists(r.post.ID, u.ID)
	if err != nil {
		r.warnf("post upload check for post %d upload %d: %v", r.post.ID, u.ID, err)
		return
	}
	if exists {
		return
	}
	if err := r.p.postUploads.Create(r.post.ID, u.ID); err != nil {
		r.warnf("linking upload %d to post %d: %v", u.ID, r.post.ID, err)
	}
}
