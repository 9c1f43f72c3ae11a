package workoutsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

// Keys of the browser storage export.
const (
	legacyDaysKey      = "gym_days"
	legacyExercisesKey = "gym_exercises"
	legacyThemeKey     = "gym_theme"
)

var ErrInvalidLegacyExport = errors.New("invalid legacy export")

// ImportReport summarizes a legacy import.
type ImportReport struct {
	Days             int    `json:"days"`
	Exercises        int    `json:"exercises"`
	SkippedDays      int    `json:"skippedDays"`
	SkippedExercises int    `json:"skippedExercises"`
	DroppedMedia     int    `json:"droppedMedia"`
	Theme            string `json:"theme,omitempty"`
}

type legacyDay struct {
	ID        legacyString `json:"id"`
	Title     string       `json:"title"`
	CreatedAt legacyMillis `json:"createdAt"`
}

type legacyExercise struct {
	ID        legacyString `json:"id"`
	DayID     legacyString `json:"dayId"`
	Name      string       `json:"name"`
	MediaID   string       `json:"mediaId"`
	Image     string       `json:"image"`
	CreatedAt legacyMillis `json:"createdAt"`
}

// legacyString accepts both JSON strings and numbers.
type legacyString string

func (s *legacyString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("unmarshal string: %w", err)
		}

		*s = legacyString(str)

		return nil
	}

	*s = legacyString(data)

	return nil
}

// legacyMillis is a unix timestamp in milliseconds.
type legacyMillis int64

func (m *legacyMillis) UnmarshalJSON(data []byte) error {
	var raw legacyString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}

	if raw == "" {
		return nil
	}

	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}

	*m = legacyMillis(ms)

	return nil
}

func (m legacyMillis) time(fallback time.Time) time.Time {
	if m <= 0 {
		return fallback
	}

	return time.UnixMilli(int64(m)).UTC()
}

// ImportLegacy imports the browser storage export of the original app:
// a JSON object whose "gym_days" and "gym_exercises" values hold the stored
// lists, either as JSON encoded strings or inline, and whose "gym_theme" is
// the raw theme key. Records whose ID already exists are skipped, so an
// import can be repeated. Media records lived in the browser and are not
// part of the export: exercises keep inline images but lose their media ID.
//
//nolint:funlen,cyclop
func (svc *Service) ImportLegacy(ctx context.Context, r io.Reader) (report ImportReport, err error) {
	log := svc.log.With(logging.Group("import", "format", "legacy"))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "legacy import failed", "error", err)
		} else {
			log.InfoContext(ctx, "legacy import done",
				"days", report.Days,
				"exercises", report.Exercises,
				"skipped_days", report.SkippedDays,
				"skipped_exercises", report.SkippedExercises,
				"dropped_media", report.DroppedMedia,
			)
		}
	}()

	var export map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return report, fmt.Errorf("%w: %w", ErrInvalidLegacyExport, err)
	}

	var (
		days      []legacyDay
		exercises []legacyExercise
	)

	if err := decodeLegacyValue(export[legacyDaysKey], &days); err != nil {
		return report, fmt.Errorf("%w: %s: %w", ErrInvalidLegacyExport, legacyDaysKey, err)
	}

	if err := decodeLegacyValue(export[legacyExercisesKey], &exercises); err != nil {
		return report, fmt.Errorf("%w: %s: %w", ErrInvalidLegacyExport, legacyExercisesKey, err)
	}

	now := svc.now().UTC().Truncate(time.Millisecond)

	for _, ld := range days {
		day := domain.Day{
			ID:        strings.TrimSpace(string(ld.ID)),
			Title:     strings.TrimSpace(ld.Title),
			CreatedAt: ld.CreatedAt.time(now),
		}

		if day.ID == "" || day.Title == "" {
			report.SkippedDays++

			continue
		}

		if err := svc.repo.CreateDay(ctx, day); err != nil {
			if errors.Is(err, domain.ErrDuplicateRecord) {
				report.SkippedDays++

				continue
			}

			return report, fmt.Errorf("create day %s: %w", day.ID, err)
		}

		report.Days++
	}

	for _, le := range exercises {
		ex := domain.Exercise{
			ID:          strings.TrimSpace(string(le.ID)),
			DayID:       strings.TrimSpace(string(le.DayID)),
			Name:        strings.TrimSpace(le.Name),
			LegacyImage: le.Image,
			CreatedAt:   le.CreatedAt.time(now),
		}

		if ex.LegacyImage != "" {
			ex.MediaKind = domain.MediaKindImage
		}

		if ex.ID == "" || ex.DayID == "" || ex.Name == "" {
			report.SkippedExercises++

			continue
		}

		if err := svc.repo.CreateExercise(ctx, ex); err != nil {
			if errors.Is(err, domain.ErrDuplicateRecord) || errors.Is(err, domain.ErrDayNotFound) {
				report.SkippedExercises++

				continue
			}

			return report, fmt.Errorf("create exercise %s: %w", ex.ID, err)
		}

		if le.MediaID != "" {
			// IDs from the browser store do not exist here.
			report.DroppedMedia++
		}

		report.Exercises++
	}

	if raw, ok := export[legacyThemeKey]; ok {
		var key string
		if err := decodeLegacyValue(raw, &key); err != nil {
			// The theme was stored unquoted, so a plain string is the key itself.
			if err := json.Unmarshal(raw, &key); err != nil {
				return report, fmt.Errorf("%w: %s: %w", ErrInvalidLegacyExport, legacyThemeKey, err)
			}
		}

		if _, ok := svc.themes.Lookup(key); ok {
			if err := svc.repo.SetSetting(ctx, themeSettingKey, key); err != nil {
				return report, fmt.Errorf("set theme: %w", err)
			}

			report.Theme = key
		} else if key != "" {
			log.WarnContext(ctx, "legacy theme is unknown", "theme", key)
		}
	}

	return report, nil
}

// decodeLegacyValue decodes a stored value that is either inline JSON or a
// string containing JSON. Missing and null values leave v untouched.
func decodeLegacyValue(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("unmarshal string: %w", err)
		}

		raw = json.RawMessage(inner)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	return nil
}
