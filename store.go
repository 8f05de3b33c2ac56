// SQLite-backed implementation of the storage collaborators: uploads,
// post-to-upload associations and topic images.
package discourse

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store implements UploadStore, PostUploadStore, TopicImageSink and
// ThumbnailSink on a SQLite database.
type Store struct {
	db *sql.DB

	// objectStoreBase is the base URL of the external object store, e.g.
	// "https://bucket.s3.amazonaws.com". Empty when uploads are local only.
	objectStoreBase string
}

// NewStore opens (or creates) the database at path, ensures the data
// directory exists and runs schema setup. objectStoreBase may be empty.
func NewStore(path, objectStoreBase string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent read/write, busy timeout so writers wait instead of
	// failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, objectStoreBase: strings.TrimSuffix(objectStoreBase, "/")}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS uploads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    original_filename TEXT NOT NULL DEFAULT '',
    filesize INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    thumbnail_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS post_uploads (
    post_id INTEGER NOT NULL,
    upload_id INTEGER NOT NULL,
    PRIMARY KEY (post_id, upload_id)
);
CREATE TABLE IF NOT EXISTS topic_images (
    topic_id INTEGER PRIMARY KEY,
    url TEXT NOT NULL
);
`)
	return err
}

// CreateUpload inserts a new upload record and fills in its ID.
func (s *Store) CreateUpload(u *Upload) error {
	res, err := s.db.Exec(
		`INSERT INTO uploads (url, original_filename, filesize, width, height, thumbnail_url)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.URL, u.OriginalFilename, u.Filesize, u.Width, u.Height, u.ThumbnailURL,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (s *Store) scanUpload(row *sql.Row) (*Upload, error) {
	var u Upload
	err := row.Scan(&u.ID, &u.URL, &u.OriginalFilename, &u.Filesize, &u.Width, &u.Height, &u.ThumbnailURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const uploadColumns = `id, url, original_filename, filesize, width, height, thumbnail_url`

// FindByID returns the upload with the given id, or nil when absent.
func (s *Store) FindByID(id int64) (*Upload, error) {
	return s.scanUpload(s.db.QueryRow(
		`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id))
}

// FindByURL returns the upload with the given URL, or nil when absent.
func (s *Store) FindByURL(url string) (*Upload, error) {
	return s.scanUpload(s.db.QueryRow(
		`SELECT `+uploadColumns+` FROM uploads WHERE url = ?`, url))
}

// IsKnownUploadURL reports whether url references a locally stored upload:
// either by shape (local upload path, object-store prefix) or by an exact
// record in the uploads table.
func (s *Store) IsKnownUploadURL(url string) bool {
	if localUploadRe.MatchString(url) || s.IsObjectStoreURL(url) {
		return true
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM uploads WHERE url = ?`, url).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// IsObjectStoreURL reports whether url points into the configured object
// store. Scheme-relative forms are recognized too.
func (s *Store) IsObjectStoreURL(url string) bool {
	if s.objectStoreBase == "" {
		return false
	}
	if strings.HasPrefix(url, s.objectStoreBase) {
		return true
	}
	if i := strings.Index(s.objectStoreBase, "//"); i >= 0 {
		return strings.HasPrefix(url, s.objectStoreBase[i:])
	}
	return false
}

// Create records a (post, upload) association. Duplicate associations are
// silently ignored.
func (s *Store) Create(postID, uploadID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO post_uploads (post_id, upload_id) VALUES (?, ?)`,
		postID, uploadID,
	)
	return err
}

// Exists reports whether the (post, upload) association is already recorded.
func (s *Store) Exists(postID, uploadID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM post_uploads WHERE post_id = ? AND upload_id = ?`,
		postID, uploadID,
	).Scan(&n)
	return n > 0, err
}

// SetTopicImage records (or replaces) the representative image of a topic.
func (s *Store) SetTopicImage(topicID int64, url string) error {
	_, err := s.db.Exec(
		`INSERT INTO topic_images (topic_id, url) VALUES (?, ?)
		 ON CONFLICT(topic_id) DO UPDATE SET url = excluded.url`,
		topicID, url,
	)
	return err
}

// TopicImage returns the recorded representative image URL for a topic, or
// "" when none is recorded.
func (s *Store) TopicImage(topicID int64) (string, error) {
	var url string
	err := s.db.QueryRow(`SELECT url FROM topic_images WHERE topic_id = ?`, topicID).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return url, err
}

// SetUploadThumbnail records a generated thumbnail URL against its upload.
func (s *Store) SetUploadThumbnail(uploadID int64, url string) error {
	_, err := s.db.Exec(`UPDATE uploads SET thumbnail_url = ? WHERE id = ?`, url, uploadID)
	return err
}
