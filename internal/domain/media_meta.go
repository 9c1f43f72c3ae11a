package domain

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkrupp/gymtracker/internal/util/encoding"
)

// MediaMeta is the persisted description of a media record.
// The payload itself is stored separately under Hash.
type MediaMeta struct {
	ID        MediaID   `json:"id"`        // Unique identifier, never supplied by callers
	Hash      string    `json:"hash"`      // Content hash (Crockford Base32), key of the payload blob
	Size      int64     `json:"size"`      // Payload size in bytes
	MIMEType  string    `json:"mimeType"`  // e.g. image/png, video/mp4
	CreatedAt time.Time `json:"createdAt"` // Creation timestamp
}

// NewMediaMetaFromBlob decodes MediaMeta from a JSON-encoded blob.
func NewMediaMetaFromBlob(blob *Blob) (MediaMeta, error) {
	var meta MediaMeta
	if err := json.Unmarshal(blob.Bytes(), &meta); err != nil {
		return MediaMeta{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return meta, nil
}

// Kind derives the display kind from the MIME type.
func (meta MediaMeta) Kind() MediaKind {
	return KindFromMIMEType(meta.MIMEType)
}

// update recalculates the content derived fields.
func (meta *MediaMeta) update(data []byte) {
	sum := sha256.Sum256(data)
	meta.Hash = encoding.EncodeCrockfordB32LC(sum[:])
	meta.Size = int64(len(data))
}

// AsBlob encodes the metadata as JSON keyed by the media ID.
func (meta MediaMeta) AsBlob() (*Blob, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return NewBlob(meta.ID, data), nil
}
