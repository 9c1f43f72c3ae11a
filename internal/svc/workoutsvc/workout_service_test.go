package workoutsvc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

var errBoom = errors.New("boom")

type mockRepository struct {
	m           sync.Mutex
	days        []domain.Day
	exercises   []domain.Exercise
	settings    map[string]string
	exerciseErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{settings: map[string]string{}}
}

func (r *mockRepository) CreateDay(_ context.Context, day domain.Day) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, d := range r.days {
		if d.ID == day.ID {
			return domain.ErrDuplicateRecord
		}
	}
	r.days = append(r.days, day)
	return nil
}

func (r *mockRepository) ListDays(_ context.Context) ([]domain.Day, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return slices.Clone(r.days), nil
}

func (r *mockRepository) GetDay(_ context.Context, dayID string) (domain.Day, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, d := range r.days {
		if d.ID == dayID {
			return d, true, nil
		}
	}
	return domain.Day{}, false, nil
}

func (r *mockRepository) DeleteDay(_ context.Context, dayID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	n := len(r.days)
	r.days = slices.DeleteFunc(r.days, func(d domain.Day) bool { return d.ID == dayID })
	if len(r.days) == n {
		return domain.ErrDayNotFound
	}
	r.exercises = slices.DeleteFunc(r.exercises, func(ex domain.Exercise) bool { return ex.DayID == dayID })
	return nil
}

func (r *mockRepository) CreateExercise(_ context.Context, ex domain.Exercise) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.exerciseErr != nil {
		return r.exerciseErr
	}
	if !slices.ContainsFunc(r.days, func(d domain.Day) bool { return d.ID == ex.DayID }) {
		return domain.ErrDayNotFound
	}
	if slices.ContainsFunc(r.exercises, func(e domain.Exercise) bool { return e.ID == ex.ID }) {
		return domain.ErrDuplicateRecord
	}
	r.exercises = append(r.exercises, ex)
	return nil
}

func (r *mockRepository) ListExercises(_ context.Context, dayID string) ([]domain.Exercise, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var out []domain.Exercise
	for _, ex := range r.exercises {
		if ex.DayID == dayID {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (r *mockRepository) ListAllExercises(_ context.Context) ([]domain.Exercise, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return slices.Clone(r.exercises), nil
}

func (r *mockRepository) GetExercise(_ context.Context, exerciseID string) (domain.Exercise, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, ex := range r.exercises {
		if ex.ID == exerciseID {
			return ex, true, nil
		}
	}
	return domain.Exercise{}, false, nil
}

func (r *mockRepository) DeleteExercise(_ context.Context, exerciseID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	n := len(r.exercises)
	r.exercises = slices.DeleteFunc(r.exercises, func(ex domain.Exercise) bool { return ex.ID == exerciseID })
	if len(r.exercises) == n {
		return domain.ErrExerciseNotFound
	}
	return nil
}

func (r *mockRepository) GetSetting(_ context.Context, key string) (string, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	value, ok := r.settings[key]
	return value, ok, nil
}

func (r *mockRepository) SetSetting(_ context.Context, key string, value string) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.settings[key] = value
	return nil
}

func (r *mockRepository) Close() error { return nil }

type mockStore struct {
	m         sync.Mutex
	records   map[domain.MediaID]domain.Media
	next      int
	putErr    error
	deleteErr map[domain.MediaID]error
	deletes   []domain.MediaID
	maxSize   int64
}

func newMockStore() *mockStore {
	return &mockStore{records: map[domain.MediaID]domain.Media{}, deleteErr: map[domain.MediaID]error{}}
}

func (s *mockStore) Put(_ context.Context, payload []byte, mimeType string) (domain.MediaID, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.next++
	id := domain.MediaID(fmt.Sprintf("media_%d", s.next))
	s.records[id] = domain.NewMedia(bytes.Clone(payload), domain.MediaMeta{ID: id, MIMEType: mimeType})
	return id, nil
}

func (s *mockStore) Get(_ context.Context, id domain.MediaID) (domain.Media, bool, error) {
	s.m.Lock()
	defer s.m.Unlock()
	media, ok := s.records[id]
	return media, ok, nil
}

func (s *mockStore) Delete(_ context.Context, id domain.MediaID) error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	s.deletes = append(s.deletes, id)
	delete(s.records, id)
	return nil
}

func (s *mockStore) MaxSize() int64 {
	return s.maxSize
}

func (s *mockStore) len() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.records)
}

func newService(t *testing.T) (*workoutsvc.Service, *mockRepository, *mockStore) {
	t.Helper()

	repo := newMockRepository()
	store := newMockStore()

	svc, err := workoutsvc.NewService(repo, store, workoutsvc.WorkoutConfig{DeleteParallelism: 2})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return svc, repo, store
}

func TestService_AddDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	if _, err := svc.AddDay(ctx, "   "); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	day, err := svc.AddDay(ctx, "  Push day ")
	if err != nil {
		t.Fatalf("AddDay: %v", err)
	}

	if day.Title != "Push day" || day.ID == "" || day.CreatedAt.IsZero() {
		t.Errorf("unexpected day: %+v", day)
	}

	days, err := svc.ListDays(ctx)
	if err != nil || len(days) != 1 || days[0] != day {
		t.Errorf("ListDays = %+v, %v", days, err)
	}
}

func TestService_AddExercise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dayID     string
		exName    string
		upload    *workoutsvc.Upload
		putErr    error
		recordErr error
		wantErr   error
		wantKind  domain.MediaKind
		wantMedia int
	}{
		{name: "without media", dayID: "day", exName: "Squat"},
		{
			name: "image", dayID: "day", exName: "Bench",
			upload:   &workoutsvc.Upload{Payload: []byte("png"), MIMEType: "image/png"},
			wantKind: domain.MediaKindImage, wantMedia: 1,
		},
		{
			name: "video", dayID: "day", exName: "Deadlift",
			upload:   &workoutsvc.Upload{Payload: []byte("mp4"), MIMEType: "video/mp4"},
			wantKind: domain.MediaKindVideo, wantMedia: 1,
		},
		{name: "empty name", dayID: "day", exName: " ", wantErr: domain.ErrEmptyName},
		{
			name: "unknown day", dayID: "nope", exName: "Row",
			upload:  &workoutsvc.Upload{Payload: []byte("png"), MIMEType: "image/png"},
			wantErr: domain.ErrDayNotFound,
		},
		{
			name: "storage failure", dayID: "day", exName: "Row",
			upload:  &workoutsvc.Upload{Payload: []byte("png"), MIMEType: "image/png"},
			putErr:  fmt.Errorf("%w: quota", domain.ErrStorageFailure),
			wantErr: domain.ErrStorageFailure,
		},
		{
			name: "record failure removes media", dayID: "day", exName: "Row",
			upload:    &workoutsvc.Upload{Payload: []byte("png"), MIMEType: "image/png"},
			recordErr: errBoom,
			wantErr:   errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			svc, repo, store := newService(t)
			repo.days = []domain.Day{{ID: "day", Title: "Day"}}
			repo.exerciseErr = tt.recordErr
			store.putErr = tt.putErr

			ex, err := svc.AddExercise(ctx, tt.dayID, tt.exName, tt.upload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}

				if len(repo.exercises) != 0 {
					t.Errorf("exercise recorded despite failure: %+v", repo.exercises)
				}

				if store.len() != 0 {
					t.Errorf("media left behind: %d records", store.len())
				}

				return
			}

			if err != nil {
				t.Fatalf("AddExercise: %v", err)
			}

			if ex.MediaKind != tt.wantKind {
				t.Errorf("kind = %q, want %q", ex.MediaKind, tt.wantKind)
			}

			if store.len() != tt.wantMedia {
				t.Errorf("media records = %d, want %d", store.len(), tt.wantMedia)
			}

			if tt.wantMedia > 0 {
				if _, found, _ := store.Get(ctx, ex.MediaID); !found {
					t.Errorf("exercise references missing media %q", ex.MediaID)
				}
			}
		})
	}
}

func TestService_DeleteExercise(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, store := newService(t)
	repo.days = []domain.Day{{ID: "day", Title: "Day"}}

	ex, err := svc.AddExercise(ctx, "day", "Curl", &workoutsvc.Upload{Payload: []byte("x"), MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("AddExercise: %v", err)
	}

	store.deleteErr[ex.MediaID] = errBoom

	if err := svc.DeleteExercise(ctx, ex.ID); !errors.Is(err, errBoom) {
		t.Fatalf("expected media failure, got %v", err)
	}

	if _, found, _ := repo.GetExercise(ctx, ex.ID); !found {
		t.Fatal("exercise deleted although its media was not")
	}

	delete(store.deleteErr, ex.MediaID)

	if err := svc.DeleteExercise(ctx, ex.ID); err != nil {
		t.Fatalf("DeleteExercise: %v", err)
	}

	if _, found, _ := store.Get(ctx, ex.MediaID); found {
		t.Error("media still present")
	}

	if err := svc.DeleteExercise(ctx, ex.ID); !errors.Is(err, domain.ErrExerciseNotFound) {
		t.Errorf("expected ErrExerciseNotFound, got %v", err)
	}
}

func TestService_DeleteDayCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, store := newService(t)

	day, _ := svc.AddDay(ctx, "Legs")
	other, _ := svc.AddDay(ctx, "Arms")

	var mediaIDs []domain.MediaID

	for i := range 5 {
		ex, err := svc.AddExercise(ctx, day.ID, fmt.Sprintf("ex %d", i),
			&workoutsvc.Upload{Payload: []byte{byte(i)}, MIMEType: "image/png"})
		if err != nil {
			t.Fatalf("AddExercise: %v", err)
		}

		mediaIDs = append(mediaIDs, ex.MediaID)
	}

	if _, err := svc.AddExercise(ctx, day.ID, "no media", nil); err != nil {
		t.Fatalf("AddExercise: %v", err)
	}

	kept, err := svc.AddExercise(ctx, other.ID, "kept", &workoutsvc.Upload{Payload: []byte("k"), MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("AddExercise: %v", err)
	}

	if err := svc.DeleteDay(ctx, day.ID); err != nil {
		t.Fatalf("DeleteDay: %v", err)
	}

	for _, id := range mediaIDs {
		if _, found, _ := store.Get(ctx, id); found {
			t.Errorf("media %q survived the cascade", id)
		}
	}

	if _, found, _ := store.Get(ctx, kept.MediaID); !found {
		t.Error("media of another day was deleted")
	}

	if exs, _ := repo.ListExercises(ctx, day.ID); len(exs) != 0 {
		t.Errorf("exercises survived: %+v", exs)
	}

	if err := svc.DeleteDay(ctx, day.ID); !errors.Is(err, domain.ErrDayNotFound) {
		t.Errorf("expected ErrDayNotFound, got %v", err)
	}
}

func TestService_DeleteDayAbortsOnMediaFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, store := newService(t)

	day, _ := svc.AddDay(ctx, "Legs")

	var last domain.Exercise

	for i := range 3 {
		last, _ = svc.AddExercise(ctx, day.ID, fmt.Sprintf("ex %d", i),
			&workoutsvc.Upload{Payload: []byte{byte(i)}, MIMEType: "image/png"})
	}

	store.deleteErr[last.MediaID] = fmt.Errorf("%w: disk", domain.ErrStorageFailure)

	if err := svc.DeleteDay(ctx, day.ID); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}

	if _, found, _ := repo.GetDay(ctx, day.ID); !found {
		t.Fatal("day deleted despite media failure")
	}

	if exs, _ := repo.ListExercises(ctx, day.ID); len(exs) != 3 {
		t.Errorf("exercises = %d, want 3", len(exs))
	}

	// Retrying once the store recovers finishes the cascade.
	delete(store.deleteErr, last.MediaID)

	if err := svc.DeleteDay(ctx, day.ID); err != nil {
		t.Fatalf("DeleteDay retry: %v", err)
	}

	if store.len() != 0 {
		t.Errorf("media left behind: %d", store.len())
	}
}

func TestService_SearchExercises(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newService(t)

	push, _ := svc.AddDay(ctx, "Push")
	pull, _ := svc.AddDay(ctx, "Pull")

	for _, name := range []string{"Bench Press", "ＢＥＮＣＨ dips", "Overhead press"} {
		if _, err := svc.AddExercise(ctx, push.ID, name, nil); err != nil {
			t.Fatalf("AddExercise: %v", err)
		}
	}

	for _, name := range []string{"Barbell row", "Straße pull"} {
		if _, err := svc.AddExercise(ctx, pull.ID, name, nil); err != nil {
			t.Fatalf("AddExercise: %v", err)
		}
	}

	tests := []struct {
		name  string
		dayID string
		query string
		want  []string
	}{
		{name: "case insensitive", dayID: push.ID, query: "PRESS", want: []string{"Bench Press", "Overhead press"}},
		{name: "width insensitive", dayID: push.ID, query: "bench", want: []string{"Bench Press", "ＢＥＮＣＨ dips"}},
		{name: "full fold", dayID: "", query: "STRASSE", want: []string{"Straße pull"}},
		{name: "all days", dayID: "", query: "r", want: []string{"Bench Press", "Overhead press", "Barbell row", "Straße pull"}},
		{name: "empty query", dayID: pull.ID, query: "  ", want: []string{"Barbell row", "Straße pull"}},
		{name: "no match", dayID: pull.ID, query: "squat", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := svc.SearchExercises(ctx, tt.dayID, tt.query)
			if err != nil {
				t.Fatalf("SearchExercises: %v", err)
			}

			names := make([]string, 0, len(got))
			for _, ex := range got {
				names = append(names, ex.Name)
			}

			if !slices.Equal(names, tt.want) {
				t.Errorf("got %q, want %q", names, tt.want)
			}
		})
	}

	if _, err := svc.SearchExercises(ctx, "nope", "x"); !errors.Is(err, domain.ErrDayNotFound) {
		t.Errorf("expected ErrDayNotFound, got %v", err)
	}
}

func TestService_Themes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newService(t)

	keys := make([]string, 0, 3)
	for _, theme := range svc.Themes() {
		keys = append(keys, theme.Key)
	}

	if !slices.Equal(keys, []string{"apple", "classic", "minimal"}) {
		t.Fatalf("themes = %q", keys)
	}

	theme, err := svc.CurrentTheme(ctx)
	if err != nil || theme.Key != "apple" {
		t.Fatalf("CurrentTheme = %q, %v; want apple", theme.Key, err)
	}

	if _, err := svc.SetTheme(ctx, "neon"); !errors.Is(err, domain.ErrUnknownTheme) {
		t.Errorf("expected ErrUnknownTheme, got %v", err)
	}

	if _, err := svc.SetTheme(ctx, "minimal"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}

	theme, _ = svc.CurrentTheme(ctx)
	if theme.Name != "Pure Black" {
		t.Errorf("current theme = %q, want Pure Black", theme.Name)
	}

	repo.settings["theme"] = "removed"

	theme, _ = svc.CurrentTheme(ctx)
	if theme.Key != "apple" {
		t.Errorf("stale setting should fall back to default, got %q", theme.Key)
	}
}
