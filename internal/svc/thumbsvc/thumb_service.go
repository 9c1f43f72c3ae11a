package thumbsvc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
)

// BlobThumbService decorates a media store with resized image variants.
// Thumbnails are cached in a blob repository keyed "<payload hash>~<width>"
// and dropped when the payload they were made from is pruned.
type BlobThumbService struct {
	store     mediasvc.PruningStore
	cacheRepo blob.Repository
	cfg       ThumbConfig
	log       logging.Logger
}

var _ mediasvc.PruningStore = (*BlobThumbService)(nil)

// NewBlobThumbService creates the cache repository and wraps store.
func NewBlobThumbService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	store mediasvc.PruningStore,
	cfg ThumbConfig,
) (*BlobThumbService, error) {
	if _, err := getInterpolatorByName(cfg.Interpolator); err != nil {
		return nil, fmt.Errorf("thumb config: %w", err)
	}

	cacheRepo, err := repoFactory(ctx, "cache", "bin")
	if err != nil {
		return nil, fmt.Errorf("new cache repository: %w", err)
	}

	return &BlobThumbService{
		store:     store,
		cacheRepo: cacheRepo,
		cfg:       cfg,
		log:       logging.GetLogger("svc.thumbsvc.blob_thumb_service"),
	}, nil
}

// MaxSize implements mediasvc.PruningStore.MaxSize by delegating to the wrapped store.
func (thumbSvc *BlobThumbService) MaxSize() int64 {
	return thumbSvc.store.MaxSize()
}

// Put implements mediasvc.MediaStore.Put by delegating to the wrapped store.
func (thumbSvc *BlobThumbService) Put(ctx context.Context, payload []byte, mimeType string) (domain.MediaID, error) {
	//nolint:wrapcheck
	return thumbSvc.store.Put(ctx, payload, mimeType)
}

// Get implements mediasvc.MediaStore.Get by delegating to the wrapped store.
func (thumbSvc *BlobThumbService) Get(ctx context.Context, mediaID domain.MediaID) (domain.Media, bool, error) {
	//nolint:wrapcheck
	return thumbSvc.store.Get(ctx, mediaID)
}

// Delete implements mediasvc.MediaStore.Delete and clears cached thumbnails
// once the payload is gone.
func (thumbSvc *BlobThumbService) Delete(ctx context.Context, mediaID domain.MediaID) error {
	_, _, err := thumbSvc.Remove(ctx, mediaID)

	return err
}

// Remove implements mediasvc.PruningStore.Remove.
func (thumbSvc *BlobThumbService) Remove(
	ctx context.Context,
	mediaID domain.MediaID,
) (pruned bool, dataID domain.BlobID, err error) {
	log := thumbSvc.log.With(logging.Group("media", "id", mediaID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "thumbnail cleanup failed", "error", err)
		} else {
			log.DebugContext(ctx, "media removed", "pruned", pruned)
		}
	}()

	pruned, dataID, err = thumbSvc.store.Remove(ctx, mediaID)
	if err != nil {
		return false, dataID, fmt.Errorf("remove media: %w", err)
	}

	if !pruned {
		return false, dataID, nil
	}

	unlock, err := thumbSvc.cacheRepo.Lock(ctx, dataID, true)
	if err != nil {
		return true, dataID, fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	if err := thumbSvc.cacheRepo.DeleteAll(ctx, dataID, blob.VariantSeparator+"*"); err != nil {
		return true, dataID, fmt.Errorf("delete cache: %w", err)
	}

	return true, dataID, nil
}

// Thumbnail returns the image media resized to width, serving from the
// cache when possible. Missing media is reported like Get: found is false.
// Video media cannot be thumbnailed.
func (thumbSvc *BlobThumbService) Thumbnail(
	ctx context.Context,
	mediaID domain.MediaID,
	width int,
) (thumb domain.Media, found bool, err error) {
	log := thumbSvc.log.With(logging.Group("media", "id", mediaID, "width", width))

	cached := false

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "thumbnail failed", "error", err)
		} else {
			log.DebugContext(ctx, "thumbnail served", "found", found, "cached", cached)
		}
	}()

	if width <= 0 || (thumbSvc.cfg.MaxWidth > 0 && width > thumbSvc.cfg.MaxWidth) {
		return domain.Media{}, false, fmt.Errorf("%w: %d", domain.ErrInvalidWidth, width)
	}

	media, found, err := thumbSvc.store.Get(ctx, mediaID)
	if err != nil || !found {
		return domain.Media{}, found, err //nolint:wrapcheck
	}

	if media.Kind() != domain.MediaKindImage {
		return domain.Media{}, true, fmt.Errorf("%w: %s", domain.ErrThumbnailUnsupported, media.Kind())
	}

	meta := media.Meta()
	meta.MIMEType = thumbnailType(media.MIMEType())

	dataID := domain.BlobID(media.Hash())
	cacheID := domain.BlobID(media.Hash() + blob.VariantSeparator + strconv.Itoa(width))

	// Remove clears the cache under an exclusive lock on dataID.
	unlockData, err := thumbSvc.cacheRepo.Lock(ctx, dataID, false)
	if err != nil {
		return domain.Media{}, true, fmt.Errorf("lock cache: %w", err)
	}
	defer unlockData()

	unlock, err := thumbSvc.cacheRepo.Lock(ctx, cacheID, true)
	if err != nil {
		return domain.Media{}, true, fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	cacheBlob, err := thumbSvc.cacheRepo.Fetch(ctx, cacheID)
	if err == nil {
		cached = true

		return domain.NewMedia(cacheBlob.Bytes(), meta), true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return domain.Media{}, true, fmt.Errorf("fetch cache: %w", err)
	}

	// The payload may have been pruned since Get; a thumbnail stored now
	// would never be cleared.
	if _, found, err = thumbSvc.store.Get(ctx, mediaID); err != nil || !found {
		return domain.Media{}, found, err //nolint:wrapcheck
	}

	resized, mimeType, err := resizeImage(media.Bytes(), media.MIMEType(), width, thumbSvc.cfg.Interpolator)
	if err != nil {
		return domain.Media{}, true, fmt.Errorf("resize image: %w", err)
	}

	meta.MIMEType = mimeType

	if err := thumbSvc.cacheRepo.Store(ctx, domain.NewBlob(cacheID, resized)); err != nil {
		// Serve the thumbnail uncached.
		log.WarnContext(ctx, "thumbnail cache store failed", "error", err)
	}

	return domain.NewMedia(resized, meta), true, nil
}
