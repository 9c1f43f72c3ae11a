package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mkrupp/gymtracker/internal/util/encoding"
)

// MediaIDPrefix starts every generated media ID.
const MediaIDPrefix = "media_"

// MediaID identifies a media record. It is an alias for BlobID because the
// record's metadata is stored as a blob under the same key.
type MediaID = BlobID

// NewMediaID generates a fresh media ID from a UUIDv7, i.e. a millisecond
// timestamp followed by cryptographically random bits, encoded as lowercase
// Crockford Base32.
func NewMediaID() (MediaID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new uuid v7: %w", err)
	}

	return MediaID(MediaIDPrefix + encoding.EncodeCrockfordB32LC(id[:])), nil
}

// ParseMediaID normalizes user supplied media IDs and rejects anything that is
// not a prefixed Crockford Base32 string. The returned ID is safe to use as a
// storage key.
func ParseMediaID(raw string) (MediaID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoMediaID
	}

	body, ok := strings.CutPrefix(strings.ToLower(raw), MediaIDPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaID, raw)
	}

	body = encoding.NormalizeCrockfordB32LC(body)
	if body == "" || !encoding.IsCrockfordB32LC(body) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaID, raw)
	}

	return MediaID(MediaIDPrefix + body), nil
}
