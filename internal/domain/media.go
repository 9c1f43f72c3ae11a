package domain

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// MediaKind is how a media record is displayed.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// KindFromMIMEType returns MediaKindVideo for MIME types starting with "video"
// and MediaKindImage for everything else.
func KindFromMIMEType(mimeType string) MediaKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video") {
		return MediaKindVideo
	}

	return MediaKindImage
}

// Media is a stored media record: an immutable payload plus its metadata.
type Media struct {
	data []byte
	meta MediaMeta
}

// NewMedia creates a Media from a payload and metadata.
// Hash and size are always recomputed from data.
func NewMedia(data []byte, meta MediaMeta) Media {
	media := Media{data: data, meta: meta}
	media.meta.update(data)

	return media
}

// ID returns the media's unique identifier.
func (m Media) ID() MediaID {
	return m.meta.ID
}

// Hash returns the content hash of the payload.
func (m Media) Hash() string {
	return m.meta.Hash
}

// Meta returns the media's metadata.
func (m Media) Meta() MediaMeta {
	return m.meta
}

// MIMEType returns the media's MIME type.
func (m Media) MIMEType() string {
	return m.meta.MIMEType
}

// Kind returns the display kind derived from the MIME type.
func (m Media) Kind() MediaKind {
	return m.meta.Kind()
}

// CreatedAt returns when the record was created.
func (m Media) CreatedAt() time.Time {
	return m.meta.CreatedAt
}

// Bytes returns the payload.
func (m Media) Bytes() []byte {
	return m.data
}

// WriteTo writes the payload to writer.
func (m Media) WriteTo(writer io.Writer) (int64, error) {
	n, err := writer.Write(m.data)
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}

	return int64(n), nil
}

// Size returns the payload size in bytes.
func (m Media) Size() int64 {
	return int64(len(m.data))
}

// AsBlob returns the payload as a blob keyed by its content hash.
func (m Media) AsBlob() *Blob {
	return NewBlob(BlobID(m.meta.Hash), m.data)
}
