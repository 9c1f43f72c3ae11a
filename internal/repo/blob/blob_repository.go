package blob

import (
	"context"

	"github.com/mkrupp/gymtracker/internal/domain"
)

// VariantSeparator splits a blob ID into its stem and a variant suffix, e.g.
// "<hash>~320" is the 320px variant of "<hash>". All variants of a stem are
// stored next to each other so DeleteAll can find them.
const VariantSeparator = "~"

// Repository stores opaque blobs keyed by ID.
// Missing blobs are reported with errors wrapping fs.ErrNotExist.
type Repository interface {
	// Lock acquires a lock on the blob with the given ID, exclusive for
	// writers and shared for readers. The returned function releases it.
	Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error)

	// Exists reports whether a blob with the given ID exists.
	Exists(ctx context.Context, id domain.BlobID) (bool, error)

	// Store persists a blob, replacing any previous content.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves a blob by its ID.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)

	// Delete removes a blob.
	Delete(ctx context.Context, id domain.BlobID) error

	// DeleteAll removes every variant of id whose suffix matches pattern
	// (filepath.Match syntax, e.g. "~*"). Missing variants are not an error.
	DeleteAll(ctx context.Context, id domain.BlobID, pattern string) error
}

// RepositoryFactory creates a Repository for one namespace:
// - name: logical sub-store, e.g. "data" or "meta"
// - ext: file extension / content suffix of the stored blobs
type RepositoryFactory func(
	ctx context.Context,
	name string,
	ext string,
) (Repository, error)
