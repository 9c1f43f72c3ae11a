package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

var (
	ErrBytesWrittenMismatch = errors.New("bytes written mismatch")
	ErrBytesReadMismatch    = errors.New("bytes read mismatch")
	ErrLockNotAcquired      = errors.New("lock not acquired")
)

const (
	dirPrefixLength = 2 // 16^2 = 256 directories
	dirPrefixDepth  = 3 // 256^3 = 16,777,216 directories
	lockRetryDelay  = 10 * time.Millisecond
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory returns a RepositoryFactory producing
// FileSystemRepository instances below cfg.Basedir.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(
		ctx context.Context,
		subdir string,
		ext string,
	) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, subdir, ext, cfg)
	}
}

// NewFileSystemBlobRepository creates the storage directory if needed and
// returns a repository storing "<id>.<ext>" files below Basedir/subdir.
func NewFileSystemBlobRepository(
	ctx context.Context,
	subdir string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	log := logging.GetLogger("repo.blob.filesystem_repository").With(
		logging.Group("repo",
			"basedir", cfg.Basedir,
			"subdir", subdir,
			"ext", ext,
		),
	)

	repo := &FileSystemRepository{
		subdir: subdir,
		ext:    ext,
		cfg:    cfg,
		log:    log,
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

// FileSystemRepository implements Repository on the local filesystem.
// Files are sharded into a three level directory tree derived from the
// SHA-256 of the blob ID's stem, so time ordered IDs spread evenly.
type FileSystemRepository struct {
	subdir string
	ext    string
	cfg    FileSystemBlobRepositoryConfig
	log    logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	release, err := fsRepo.flock(ctx, fsRepo.GetFilename(id), exclusive)
	if err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}

	return release, nil
}

func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) (bool, error) {
	_, err := os.Stat(fsRepo.GetFilename(id))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat: %w", err)
	}
}

func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) error {
	if err := fsRepo.deleteBlob(ctx, id); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) DeleteAll(ctx context.Context, id domain.BlobID, pattern string) error {
	if err := fsRepo.deleteBlobPattern(ctx, id, pattern); err != nil {
		return fmt.Errorf("delete blob pattern: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error) {
	blob, err := fsRepo.fetchBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch blob: %w", err)
	}

	return blob, nil
}

func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) error {
	if err := fsRepo.storeBlob(ctx, blob); err != nil {
		return fmt.Errorf("store blob: %w", err)
	}

	return nil
}

// GetFilename returns the full filesystem path for a blob with the given ID.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	return fsRepo.getBasename(id) + "." + fsRepo.ext
}

func (fsRepo *FileSystemRepository) initStorage(ctx context.Context) (err error) {
	root := filepath.Join(fsRepo.cfg.Basedir, fsRepo.subdir)

	defer func() {
		if err != nil {
			fsRepo.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsRepo.log.DebugContext(ctx, "init storage", "root", root)
		}
	}()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// getBasename maps an ID to its path without extension, e.g.
//
//	<basedir>/<subdir>/5f/56/69/media_01jq3x....
func (fsRepo *FileSystemRepository) getBasename(id domain.BlobID) string {
	name := strings.NewReplacer("/", "", "\\", "", "..", "").Replace(string(id))

	stem, _, _ := strings.Cut(name, VariantSeparator)
	sum := sha256.Sum256([]byte(stem))
	shard := hex.EncodeToString(sum[:dirPrefixLength*dirPrefixDepth/2])

	parts := []string{fsRepo.cfg.Basedir, fsRepo.subdir}
	for i := 0; i < len(shard); i += dirPrefixLength {
		parts = append(parts, shard[i:i+dirPrefixLength])
	}

	return filepath.Join(append(parts, name)...)
}

func (fsRepo *FileSystemRepository) getFilenames(id domain.BlobID, pattern string) (filenames []string, err error) {
	basename := fsRepo.getBasename(id)
	glob := basename + pattern + "." + fsRepo.ext

	entries, err := os.ReadDir(filepath.Dir(basename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(filepath.Dir(basename), entry.Name())

		matched, err := filepath.Match(glob, path)
		if err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}

		if matched {
			filenames = append(filenames, path)
		}
	}

	return filenames, nil
}

func (fsRepo *FileSystemRepository) flock(ctx context.Context, filename string, exclusive bool) (release func(), err error) {
	lockfile := filename + ".lock"
	log := fsRepo.log.With(logging.Group("blob", "lockfile", lockfile, "exclusive", exclusive))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	fileLock := flock.New(lockfile)

	var locked bool
	if exclusive {
		locked, err = fileLock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fileLock.TryRLockContext(ctx, lockRetryDelay)
	}

	if err != nil {
		_ = fileLock.Close()

		return nil, fmt.Errorf("try lock: %w", err)
	} else if !locked {
		_ = fileLock.Close()

		return nil, ErrLockNotAcquired
	}

	return func() {
		_ = fileLock.Unlock()
		_ = fileLock.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}

func (fsRepo *FileSystemRepository) storeBlob(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	// Write to a temporary file first so readers never observe a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	written, err := blob.WriteTo(tmp)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if written != blob.Size() {
		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), written)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) fetchBlob(
	ctx context.Context,
	blobID domain.BlobID,
) (blob *domain.Blob, err error) {
	filename := fsRepo.GetFilename(blobID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blobID, "filename", filename))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else if err != nil {
			log.DebugContext(ctx, "blob not found")
		} else {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	//nolint:exhaustruct
	data := &domain.Blob{ID: blobID}
	if n, err := data.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	} else if info, err := file.Stat(); err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	} else if n != info.Size() {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrBytesReadMismatch, info.Size(), n)
	}

	return data, nil
}

func (fsRepo *FileSystemRepository) deleteBlob(ctx context.Context, id domain.BlobID) (err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	if err := os.Remove(filename); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) deleteBlobPattern(
	ctx context.Context,
	blobID domain.BlobID,
	pattern string,
) (err error) {
	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blobID, "pattern", pattern))
		if err != nil {
			log.ErrorContext(ctx, "blob delete pattern failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob pattern deleted")
		}
	}()

	filenames, err := fsRepo.getFilenames(blobID, pattern)
	if err != nil {
		return fmt.Errorf("get filenames: %w", err)
	}

	for _, filename := range filenames {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}
	}

	return nil
}
