package domain

// BlobID identifies a blob inside a single repository.
// Payload blobs use the Crockford Base32 content hash; metadata blobs use the MediaID.
type BlobID string

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
