package domain

// DisplayHandle is a transient reference to displayable media.
// It is only valid inside the running process and never persisted.
type DisplayHandle struct {
	Reference string    `json:"reference"`
	Kind      MediaKind `json:"kind"`
}
