package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

// SQLiteWorkoutRepositoryConfig holds configuration for the SQLite workout repository.
type SQLiteWorkoutRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file, or ":memory:"
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/gymtracker.db"`
}

// SQLiteWorkoutRepository implements Repository using SQLite as the storage backend.
type SQLiteWorkoutRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteWorkoutRepository)(nil)

// SQLiteWorkoutRepositoryFactory creates a factory function that returns a new SQLiteWorkoutRepository.
// The factory function implements the RepositoryFactory type.
func SQLiteWorkoutRepositoryFactory(cfg SQLiteWorkoutRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteWorkoutRepository(cfg)
	}
}

// NewSQLiteWorkoutRepository creates a new SQLiteWorkoutRepository with the given configuration.
// It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteWorkoutRepository(cfg SQLiteWorkoutRepositoryConfig) (*SQLiteWorkoutRepository, error) {
	log := logging.GetLogger("repo.workout.sqlite_workout_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir all: %w", err)
		}
	}

	dsn := cfg.DatabasePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.Debug("database opened")

	return &SQLiteWorkoutRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS days (
			id         TEXT    PRIMARY KEY,
			title      TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS exercises (
			id           TEXT    PRIMARY KEY,
			day_id       TEXT    NOT NULL REFERENCES days(id) ON DELETE CASCADE,
			name         TEXT    NOT NULL,
			media_id     TEXT    NOT NULL DEFAULT '',
			media_kind   TEXT    NOT NULL DEFAULT '',
			legacy_image TEXT    NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS exercises_day_id ON exercises (day_id, created_at);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreateDay implements Repository.CreateDay using SQLite.
func (r *SQLiteWorkoutRepository) CreateDay(ctx context.Context, day domain.Day) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO days (id, title, created_at) VALUES (?, ?, ?)",
		day.ID,
		day.Title,
		day.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert day: %w", classify(err, nil))
	}

	return nil
}

// ListDays implements Repository.ListDays using SQLite.
func (r *SQLiteWorkoutRepository) ListDays(ctx context.Context) ([]domain.Day, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, created_at FROM days ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	days := []domain.Day{}

	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, err
		}

		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}

	return days, nil
}

// GetDay implements Repository.GetDay using SQLite.
func (r *SQLiteWorkoutRepository) GetDay(ctx context.Context, dayID string) (domain.Day, bool, error) {
	day, err := scanDay(r.db.QueryRowContext(ctx, "SELECT id, title, created_at FROM days WHERE id = ?", dayID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Day{}, false, nil
	} else if err != nil {
		return domain.Day{}, false, err
	}

	return day, true, nil
}

// DeleteDay implements Repository.DeleteDay using SQLite.
func (r *SQLiteWorkoutRepository) DeleteDay(ctx context.Context, dayID string) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM exercises WHERE day_id = ?", dayID); err != nil {
		return fmt.Errorf("delete exercises: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM days WHERE id = ?", dayID)
	if err != nil {
		return fmt.Errorf("delete day: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %q", domain.ErrDayNotFound, dayID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// CreateExercise implements Repository.CreateExercise using SQLite.
func (r *SQLiteWorkoutRepository) CreateExercise(ctx context.Context, exercise domain.Exercise) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exercises (id, day_id, name, media_id, media_kind, legacy_image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exercise.ID,
		exercise.DayID,
		exercise.Name,
		string(exercise.MediaID),
		string(exercise.MediaKind),
		exercise.LegacyImage,
		exercise.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert exercise: %w", classify(err, domain.ErrDayNotFound))
	}

	return nil
}

const selectExercises = `SELECT id, day_id, name, media_id, media_kind, legacy_image, created_at FROM exercises`

// ListExercises implements Repository.ListExercises using SQLite.
func (r *SQLiteWorkoutRepository) ListExercises(ctx context.Context, dayID string) ([]domain.Exercise, error) {
	return r.queryExercises(ctx, selectExercises+" WHERE day_id = ? ORDER BY created_at, rowid", dayID)
}

// ListAllExercises implements Repository.ListAllExercises using SQLite.
func (r *SQLiteWorkoutRepository) ListAllExercises(ctx context.Context) ([]domain.Exercise, error) {
	return r.queryExercises(ctx, selectExercises+" ORDER BY created_at, rowid")
}

// GetExercise implements Repository.GetExercise using SQLite.
func (r *SQLiteWorkoutRepository) GetExercise(ctx context.Context, exerciseID string) (domain.Exercise, bool, error) {
	exercise, err := scanExercise(r.db.QueryRowContext(ctx, selectExercises+" WHERE id = ?", exerciseID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Exercise{}, false, nil
	} else if err != nil {
		return domain.Exercise{}, false, err
	}

	return exercise, true, nil
}

// DeleteExercise implements Repository.DeleteExercise using SQLite.
func (r *SQLiteWorkoutRepository) DeleteExercise(ctx context.Context, exerciseID string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.ExecContext(ctx, "DELETE FROM exercises WHERE id = ?", exerciseID)
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %q", domain.ErrExerciseNotFound, exerciseID)
	}

	return nil
}

// GetSetting implements Repository.GetSetting using SQLite.
func (r *SQLiteWorkoutRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("query setting: %w", err)
	}

	return value, true, nil
}

// SetSetting implements Repository.SetSetting using SQLite.
func (r *SQLiteWorkoutRepository) SetSetting(ctx context.Context, key string, value string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteWorkoutRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func (r *SQLiteWorkoutRepository) queryExercises(ctx context.Context, query string, args ...any) ([]domain.Exercise, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	exercises := []domain.Exercise{}

	for rows.Next() {
		exercise, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}

		exercises = append(exercises, exercise)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}

	return exercises, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDay(row scanner) (domain.Day, error) {
	var (
		day       domain.Day
		createdAt int64
	)

	if err := row.Scan(&day.ID, &day.Title, &createdAt); err != nil {
		return domain.Day{}, fmt.Errorf("scan day: %w", err)
	}

	day.CreatedAt = time.UnixMilli(createdAt).UTC()

	return day, nil
}

func scanExercise(row scanner) (domain.Exercise, error) {
	var (
		exercise  domain.Exercise
		mediaID   string
		mediaKind string
		createdAt int64
	)

	if err := row.Scan(
		&exercise.ID,
		&exercise.DayID,
		&exercise.Name,
		&mediaID,
		&mediaKind,
		&exercise.LegacyImage,
		&createdAt,
	); err != nil {
		return domain.Exercise{}, fmt.Errorf("scan exercise: %w", err)
	}

	exercise.MediaID = domain.MediaID(mediaID)
	exercise.MediaKind = domain.MediaKind(mediaKind)
	exercise.CreatedAt = time.UnixMilli(createdAt).UTC()

	return exercise, nil
}

// classify maps constraint violations to domain errors. Foreign key
// violations are reported as missingParent.
func classify(err error, missingParent error) error {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return err
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return errors.Join(domain.ErrDuplicateRecord, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return errors.Join(missingParent, err)
	default:
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return errors.Join(missingParent, err)
		}

		return err
	}
}
