package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

var (
	ErrBucketNotConfigured   = errors.New("bucket not configured")
	ErrEndpointNotConfigured = errors.New("endpoint not configured")
)

// MinIOBlobRepositoryConfig holds configuration for the S3 compatible blob repository.
type MinIOBlobRepositoryConfig struct {
	Endpoint  string `env:"ENDPOINT" default:""`
	AccessKey string `env:"ACCESS_KEY" default:""`
	SecretKey string `env:"SECRET_KEY" default:""`
	Bucket    string `env:"BUCKET" default:"gymtracker"`
	UseSSL    bool   `env:"USE_SSL" default:"false"`
}

// NewMinIOClient creates an S3 client from cfg.
func NewMinIOClient(cfg MinIOBlobRepositoryConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointNotConfigured
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// MinIOBlobRepositoryFactory returns a RepositoryFactory whose repositories
// share one client and one bucket. Objects are keyed "<name>/<id>.<ext>".
func MinIOBlobRepositoryFactory(client *minio.Client, bucket string) RepositoryFactory {
	bucketRef := &minioBucket{client: client, name: strings.TrimSpace(bucket)}
	locks := newKeyedRWMutex()

	return func(ctx context.Context, name string, ext string) (Repository, error) {
		if err := bucketRef.ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}

		return &MinIORepository{
			bucket: bucketRef,
			prefix: name,
			ext:    ext,
			locks:  locks,
			log: logging.GetLogger("repo.blob.minio_repository").With(
				logging.Group("repo", "bucket", bucketRef.name, "prefix", name, "ext", ext),
			),
		}, nil
	}
}

type minioBucket struct {
	client *minio.Client
	name   string

	mu    sync.Mutex
	ready bool
}

// ensure creates the bucket once. A failed attempt is retried on the next call.
func (b *minioBucket) ensure(ctx context.Context) error {
	if b.client == nil {
		return errors.New("s3 client is nil")
	}

	if b.name == "" {
		return ErrBucketNotConfigured
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ready {
		return nil
	}

	exists, err := b.client.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("bucket exists %q: %w", b.name, err)
	}

	if !exists {
		if err := b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %q: %w", b.name, err)
		}
	}

	b.ready = true

	return nil
}

// MinIORepository implements Repository on S3 compatible object storage.
// Locks are process local since object stores offer no advisory locking.
type MinIORepository struct {
	bucket *minioBucket
	prefix string
	ext    string
	locks  *keyedRWMutex
	log    logging.Logger
}

var _ Repository = (*MinIORepository)(nil)

func (repo *MinIORepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}

	return repo.locks.lock(repo.key(id), exclusive), nil
}

func (repo *MinIORepository) Exists(ctx context.Context, id domain.BlobID) (bool, error) {
	_, err := repo.bucket.client.StatObject(ctx, repo.bucket.name, repo.key(id), minio.StatObjectOptions{})

	switch {
	case err == nil:
		return true, nil
	case isNoSuchKey(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat object: %w", err)
	}
}

func (repo *MinIORepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	key := repo.key(blob.ID)

	defer func() {
		log := repo.log.With(logging.Group("blob", "id", blob.ID, "key", key))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	info, err := repo.bucket.client.PutObject(ctx, repo.bucket.name, key, blob.Reader(), blob.Size(),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	if info.Size != blob.Size() {
		return fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), info.Size)
	}

	return nil
}

func (repo *MinIORepository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	key := repo.key(id)

	defer func() {
		log := repo.log.With(logging.Group("blob", "id", id, "key", key))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else if err != nil {
			log.DebugContext(ctx, "blob not found")
		} else {
			log.DebugContext(ctx, "blob fetched")
		}
	}()

	object, err := repo.bucket.client.GetObject(ctx, repo.bucket.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", mapNoSuchKey(err))
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat object: %w", mapNoSuchKey(err))
	}

	var buf bytes.Buffer
	if n, err := buf.ReadFrom(object); err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	} else if n != info.Size {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrBytesReadMismatch, info.Size, n)
	}

	return domain.NewBlob(id, buf.Bytes()), nil
}

// Delete removes the object. Missing objects are reported like the
// filesystem repository does, wrapped fs.ErrNotExist.
func (repo *MinIORepository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	key := repo.key(id)

	defer func() {
		log := repo.log.With(logging.Group("blob", "id", id, "key", key))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	exists, err := repo.Exists(ctx, id)
	if err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("remove object %q: %w", key, fs.ErrNotExist)
	}

	if err := repo.bucket.client.RemoveObject(ctx, repo.bucket.name, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}

	return nil
}

func (repo *MinIORepository) DeleteAll(ctx context.Context, id domain.BlobID, pattern string) (err error) {
	stem := repo.prefix + "/" + string(id)

	defer func() {
		log := repo.log.With(logging.Group("blob", "id", id, "pattern", pattern))
		if err != nil {
			log.ErrorContext(ctx, "blob delete pattern failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob pattern deleted")
		}
	}()

	glob := stem + pattern + "." + repo.ext

	for object := range repo.bucket.client.ListObjects(ctx, repo.bucket.name, minio.ListObjectsOptions{Prefix: stem}) {
		if object.Err != nil {
			return fmt.Errorf("list objects: %w", object.Err)
		}

		matched, err := path.Match(glob, object.Key)
		if err != nil {
			return fmt.Errorf("match: %w", err)
		} else if !matched {
			continue
		}

		if err := repo.bucket.client.RemoveObject(ctx, repo.bucket.name, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object: %w", err)
		}
	}

	return nil
}

func (repo *MinIORepository) key(id domain.BlobID) string {
	name := strings.NewReplacer("/", "", "\\", "").Replace(string(id))

	return repo.prefix + "/" + name + "." + repo.ext
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func mapNoSuchKey(err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	}

	return err
}
