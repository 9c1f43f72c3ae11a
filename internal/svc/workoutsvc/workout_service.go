package workoutsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/repo/workout"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
)

const themeSettingKey = "theme"

// Upload is a media file attached to a new exercise.
type Upload struct {
	Payload  []byte
	MIMEType string
}

// Service manages days, exercises and the theme preference. Media owned by
// exercises lives in the media store and is removed together with them.
type Service struct {
	repo   workout.Repository
	media  mediasvc.MediaStore
	themes *ThemeTable
	cfg    WorkoutConfig
	log    logging.Logger

	newID func() (string, error)
	now   func() time.Time
}

// NewService creates a workout service. The theme table is read from
// cfg.ThemesFile, or the built-in table if that is empty.
func NewService(repo workout.Repository, media mediasvc.MediaStore, cfg WorkoutConfig) (*Service, error) {
	var (
		themes *ThemeTable
		err    error
	)

	if cfg.ThemesFile != "" {
		themes, err = LoadThemesFile(cfg.ThemesFile)
	} else {
		themes, err = BuiltinThemes()
	}

	if err != nil {
		return nil, fmt.Errorf("load themes: %w", err)
	}

	if cfg.DeleteParallelism < 1 {
		cfg.DeleteParallelism = 1
	}

	return &Service{
		repo:   repo,
		media:  media,
		themes: themes,
		cfg:    cfg,
		log:    logging.GetLogger("svc.workoutsvc.workout_service"),
		newID:  newRecordID,
		now:    time.Now,
	}, nil
}

func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new uuid v7: %w", err)
	}

	return id.String(), nil
}

// AddDay creates a day with the given title.
func (svc *Service) AddDay(ctx context.Context, title string) (day domain.Day, err error) {
	log := svc.log.With(logging.Group("day", "title", title))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "add day failed", "error", err)
		} else {
			log.DebugContext(ctx, "day added", "id", day.ID)
		}
	}()

	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Day{}, domain.ErrEmptyTitle
	}

	id, err := svc.newID()
	if err != nil {
		return domain.Day{}, fmt.Errorf("new id: %w", err)
	}

	day = domain.Day{ID: id, Title: title, CreatedAt: svc.now().UTC().Truncate(time.Millisecond)}

	if err := svc.repo.CreateDay(ctx, day); err != nil {
		return domain.Day{}, fmt.Errorf("create day: %w", err)
	}

	return day, nil
}

// ListDays returns every day in creation order.
func (svc *Service) ListDays(ctx context.Context) ([]domain.Day, error) {
	days, err := svc.repo.ListDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}

	return days, nil
}

// MaxUploadSize is the largest media payload the store accepts, or 0 if the
// store does not report a limit.
func (s *Service) MaxUploadSize() int64 {
	if limited, ok := s.media.(interface{ MaxSize() int64 }); ok {
		return limited.MaxSize()
	}

	return 0
}

// DeleteDay removes a day, its exercises and every media record they own.
// Media goes first; if any media delete fails the records are kept so they
// can be deleted again later.
func (svc *Service) DeleteDay(ctx context.Context, dayID string) (err error) {
	log := svc.log.With(logging.Group("day", "id", dayID))

	var mediaCount int

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete day failed", "error", err)
		} else {
			log.DebugContext(ctx, "day deleted", "media", mediaCount)
		}
	}()

	if _, found, err := svc.repo.GetDay(ctx, dayID); err != nil {
		return fmt.Errorf("get day: %w", err)
	} else if !found {
		return domain.ErrDayNotFound
	}

	exercises, err := svc.repo.ListExercises(ctx, dayID)
	if err != nil {
		return fmt.Errorf("list exercises: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(svc.cfg.DeleteParallelism)

	for _, ex := range exercises {
		if !ex.HasMedia() {
			continue
		}

		mediaCount++

		group.Go(func() error {
			if err := svc.media.Delete(groupCtx, ex.MediaID); err != nil {
				return fmt.Errorf("delete media of exercise %s: %w", ex.ID, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if err := svc.repo.DeleteDay(ctx, dayID); err != nil {
		return fmt.Errorf("delete day: %w", err)
	}

	return nil
}

// AddExercise creates an exercise under dayID. An upload is stored in the
// media store first; the exercise is only written once the store accepted
// it, and the media is removed again if the exercise cannot be written.
//
//nolint:funlen
func (svc *Service) AddExercise(
	ctx context.Context,
	dayID string,
	name string,
	upload *Upload,
) (ex domain.Exercise, err error) {
	log := svc.log.With(logging.Group("exercise", "day", dayID, "name", name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "add exercise failed", "error", err)
		} else {
			log.DebugContext(ctx, "exercise added", "id", ex.ID, "media", ex.MediaID)
		}
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Exercise{}, domain.ErrEmptyName
	}

	if _, found, err := svc.repo.GetDay(ctx, dayID); err != nil {
		return domain.Exercise{}, fmt.Errorf("get day: %w", err)
	} else if !found {
		return domain.Exercise{}, domain.ErrDayNotFound
	}

	id, err := svc.newID()
	if err != nil {
		return domain.Exercise{}, fmt.Errorf("new id: %w", err)
	}

	ex = domain.Exercise{
		ID:        id,
		DayID:     dayID,
		Name:      name,
		CreatedAt: svc.now().UTC().Truncate(time.Millisecond),
	}

	if upload != nil && len(upload.Payload) > 0 {
		mimeType := strings.TrimSpace(upload.MIMEType)
		if mimeType == "" {
			mimeType = http.DetectContentType(upload.Payload)
		}

		mediaID, err := svc.media.Put(ctx, upload.Payload, mimeType)
		if err != nil {
			return domain.Exercise{}, fmt.Errorf("put media: %w", err)
		}

		ex.MediaID = mediaID
		ex.MediaKind = domain.KindFromMIMEType(mimeType)
	}

	if err := svc.repo.CreateExercise(ctx, ex); err != nil {
		err = fmt.Errorf("create exercise: %w", err)

		if ex.HasMedia() {
			if delErr := svc.media.Delete(context.WithoutCancel(ctx), ex.MediaID); delErr != nil {
				err = errors.Join(err, fmt.Errorf("delete orphaned media: %w", delErr))
			}
		}

		return domain.Exercise{}, err
	}

	return ex, nil
}

// ListExercises returns the exercises of a day in creation order.
func (svc *Service) ListExercises(ctx context.Context, dayID string) ([]domain.Exercise, error) {
	if _, found, err := svc.repo.GetDay(ctx, dayID); err != nil {
		return nil, fmt.Errorf("get day: %w", err)
	} else if !found {
		return nil, domain.ErrDayNotFound
	}

	exercises, err := svc.repo.ListExercises(ctx, dayID)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	return exercises, nil
}

// GetExercise returns a single exercise.
func (svc *Service) GetExercise(ctx context.Context, exerciseID string) (domain.Exercise, error) {
	ex, found, err := svc.repo.GetExercise(ctx, exerciseID)
	if err != nil {
		return domain.Exercise{}, fmt.Errorf("get exercise: %w", err)
	}

	if !found {
		return domain.Exercise{}, domain.ErrExerciseNotFound
	}

	return ex, nil
}

// DeleteExercise removes an exercise and the media record it owns.
func (svc *Service) DeleteExercise(ctx context.Context, exerciseID string) (err error) {
	log := svc.log.With(logging.Group("exercise", "id", exerciseID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "delete exercise failed", "error", err)
		} else {
			log.DebugContext(ctx, "exercise deleted")
		}
	}()

	ex, err := svc.GetExercise(ctx, exerciseID)
	if err != nil {
		return err
	}

	if ex.HasMedia() {
		if err := svc.media.Delete(ctx, ex.MediaID); err != nil {
			return fmt.Errorf("delete media: %w", err)
		}
	}

	if err := svc.repo.DeleteExercise(ctx, exerciseID); err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}

	return nil
}

// SearchExercises returns exercises whose name contains query, ignoring case
// and character width. An empty dayID searches every day; an empty query
// matches everything.
func (svc *Service) SearchExercises(ctx context.Context, dayID string, query string) ([]domain.Exercise, error) {
	var (
		exercises []domain.Exercise
		err       error
	)

	if dayID == "" {
		exercises, err = svc.repo.ListAllExercises(ctx)
		if err != nil {
			return nil, fmt.Errorf("list all exercises: %w", err)
		}
	} else {
		exercises, err = svc.ListExercises(ctx, dayID)
		if err != nil {
			return nil, err
		}
	}

	return filterExercises(exercises, query), nil
}

// Themes returns the available themes.
func (svc *Service) Themes() []domain.Theme {
	return svc.themes.All()
}

// CurrentTheme returns the chosen theme, falling back to the default when
// none was chosen or the stored key no longer exists.
func (svc *Service) CurrentTheme(ctx context.Context) (domain.Theme, error) {
	key, found, err := svc.repo.GetSetting(ctx, themeSettingKey)
	if err != nil {
		return domain.Theme{}, fmt.Errorf("get setting: %w", err)
	}

	if found {
		if theme, ok := svc.themes.Lookup(key); ok {
			return theme, nil
		}

		svc.log.WarnContext(ctx, "stored theme is unknown", "theme", key)
	}

	return svc.themes.DefaultTheme(), nil
}

// SetTheme stores the theme preference.
func (svc *Service) SetTheme(ctx context.Context, key string) (theme domain.Theme, err error) {
	theme, ok := svc.themes.Lookup(strings.TrimSpace(key))
	if !ok {
		return domain.Theme{}, fmt.Errorf("%w: %q", domain.ErrUnknownTheme, key)
	}

	if err := svc.repo.SetSetting(ctx, themeSettingKey, theme.Key); err != nil {
		return domain.Theme{}, fmt.Errorf("set setting: %w", err)
	}

	svc.log.DebugContext(ctx, "theme set", "theme", theme.Key)

	return theme, nil
}
