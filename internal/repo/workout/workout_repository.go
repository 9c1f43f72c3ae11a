package workout

import (
	"context"

	"github.com/mkrupp/gymtracker/internal/domain"
)

// Repository persists days, exercises and settings.
type Repository interface {
	// CreateDay inserts a day. Returns ErrDuplicateRecord if the ID is taken.
	CreateDay(ctx context.Context, day domain.Day) error

	// ListDays returns all days in creation order.
	ListDays(ctx context.Context) ([]domain.Day, error)

	// GetDay returns the day with the given ID, or false if there is none.
	GetDay(ctx context.Context, dayID string) (domain.Day, bool, error)

	// DeleteDay removes a day together with its exercises.
	// Returns ErrDayNotFound if the day does not exist.
	DeleteDay(ctx context.Context, dayID string) error

	// CreateExercise inserts an exercise. Returns ErrDayNotFound if its day
	// does not exist and ErrDuplicateRecord if the ID is taken.
	CreateExercise(ctx context.Context, exercise domain.Exercise) error

	// ListExercises returns the exercises of one day in creation order.
	ListExercises(ctx context.Context, dayID string) ([]domain.Exercise, error)

	// ListAllExercises returns every exercise in creation order.
	ListAllExercises(ctx context.Context) ([]domain.Exercise, error)

	// GetExercise returns the exercise with the given ID, or false if there is none.
	GetExercise(ctx context.Context, exerciseID string) (domain.Exercise, bool, error)

	// DeleteExercise removes an exercise.
	// Returns ErrExerciseNotFound if it does not exist.
	DeleteExercise(ctx context.Context, exerciseID string) error

	// GetSetting returns a stored setting, or false if it was never set.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting stores a setting, replacing any previous value.
	SetSetting(ctx context.Context, key string, value string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
