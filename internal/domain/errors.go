package domain

import "errors"

var (
	// ErrStorageUnavailable is returned when the persistence layer could not be opened or initialized.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageFailure is returned when the persistence layer rejects a write or delete.
	ErrStorageFailure = errors.New("storage failure")
	// ErrMediaTooLarge is returned when a payload exceeds the configured maximum size.
	// It is always reported together with ErrStorageFailure.
	ErrMediaTooLarge = errors.New("media too large")
	// ErrMediaIDCollision is returned when no unused media ID could be generated.
	ErrMediaIDCollision = errors.New("media id collision")
	// ErrNoMediaID is returned when a media ID is required but not provided.
	ErrNoMediaID = errors.New("no media ID")
	// ErrInvalidMediaID is returned for IDs that cannot have been produced by NewMediaID.
	ErrInvalidMediaID = errors.New("invalid media ID")
)

var (
	ErrDayNotFound      = errors.New("day not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrEmptyTitle       = errors.New("day title is empty")
	ErrEmptyName        = errors.New("exercise name is empty")
	ErrUnknownTheme     = errors.New("unknown theme")
	ErrDuplicateRecord  = errors.New("record already exists")
)

var (
	ErrImageTypeNotSupported = errors.New("image type not supported")
	ErrThumbnailUnsupported  = errors.New("thumbnail not supported for media kind")
	ErrInvalidWidth          = errors.New("invalid thumbnail width")
	ErrImageTooLarge         = errors.New("image dimensions too large")
)

// ErrUpdateCheckFailed is returned when the release endpoint could not be queried.
var ErrUpdateCheckFailed = errors.New("update check failed")
