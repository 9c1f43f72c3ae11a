package mediaref

import (
	"github.com/mkrupp/gymtracker/internal/domain"
)

// State is the display state of a binding.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StatePlaceholder
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// Input is what a UI element asks to display: a stored media record or a
// legacy inline value such as a data URI. Legacy takes precedence.
type Input struct {
	MediaID domain.MediaID `json:"mediaId,omitempty"`
	Legacy  string         `json:"legacy,omitempty"`
}

// IsZero reports whether the input names nothing to display.
func (in Input) IsZero() bool {
	return in.MediaID == "" && in.Legacy == ""
}

// View is a snapshot of a binding. Handle is only set in StateReady.
type View struct {
	State  State
	Handle domain.DisplayHandle
}
