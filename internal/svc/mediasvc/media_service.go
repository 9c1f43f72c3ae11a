package mediasvc

import (
	"context"

	"github.com/mkrupp/gymtracker/internal/domain"
)

// MediaStore is a durable store of immutable media records.
type MediaStore interface {
	// Put persists payload as a new record and returns its freshly generated ID.
	// Rejected writes are reported with domain.ErrStorageFailure.
	Put(ctx context.Context, payload []byte, mimeType string) (domain.MediaID, error)

	// Get returns the record with the given ID. A missing, malformed or
	// deleted ID is not an error: found is false.
	Get(ctx context.Context, mediaID domain.MediaID) (media domain.Media, found bool, err error)

	// Delete removes the record. Deleting a missing record is a no-op.
	Delete(ctx context.Context, mediaID domain.MediaID) error
}

// PruningStore is a MediaStore that reports whether deleting a record also
// removed its payload, for decorators that cache data derived from it.
type PruningStore interface {
	MediaStore

	// Remove deletes the record like Delete and reports whether the payload
	// (stored under dataID) was pruned because no other record shares it.
	Remove(ctx context.Context, mediaID domain.MediaID) (pruned bool, dataID domain.BlobID, err error)

	// MaxSize is the largest payload Put accepts, in bytes. 0 means no limit.
	MaxSize() int64
}
