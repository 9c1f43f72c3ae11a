package mediasvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
)

// maxIDAttempts bounds how often Put draws a new ID when the generated one is taken.
const maxIDAttempts = 3

// BlobMediaService implements MediaStore using blob storage.
// It manages media data and metadata in separate blob repositories and maintains
// backreferences to de-duplicate identical payloads.
type BlobMediaService struct {
	dataRepo    blob.Repository
	metaRepo    blob.Repository
	backrefRepo blob.Repository
	cfg         MediaConfig
	newID       func() (domain.MediaID, error)
	now         func() time.Time
	log         logging.Logger
}

var _ PruningStore = (*BlobMediaService)(nil)

// NewBlobMediaService creates a new BlobMediaService with the given configuration.
// It initializes three blob repositories:
// - data: payloads keyed by content hash
// - meta: record metadata keyed by media ID
// - backref: media IDs sharing a payload, keyed by content hash
// Returns an error if any repository initialization fails.
func NewBlobMediaService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	cfg MediaConfig,
) (*BlobMediaService, error) {
	log := logging.GetLogger("svc.mediasvc.blob_media_service")

	dataRepo, err := repoFactory(ctx, "data", "bin")
	if err != nil {
		return nil, fmt.Errorf("new data repository: %w", err)
	}

	backrefRepo, err := repoFactory(ctx, "data", "txt")
	if err != nil {
		return nil, fmt.Errorf("new backref repository: %w", err)
	}

	metaRepo, err := repoFactory(ctx, "meta", "json")
	if err != nil {
		return nil, fmt.Errorf("new meta repository: %w", err)
	}

	return &BlobMediaService{
		dataRepo:    dataRepo,
		metaRepo:    metaRepo,
		backrefRepo: backrefRepo,
		cfg:         cfg,
		newID:       domain.NewMediaID,
		now:         time.Now,
		log:         log,
	}, nil
}

// MaxSize implements PruningStore.MaxSize.
func (mediaSvc *BlobMediaService) MaxSize() int64 {
	return mediaSvc.cfg.MaxSize
}

// Put implements MediaStore.Put.
//
//nolint:cyclop
func (mediaSvc *BlobMediaService) Put(
	ctx context.Context,
	payload []byte,
	mimeType string,
) (mediaID domain.MediaID, err error) {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(payload)
	}

	log := mediaSvc.log.With(logging.Group("media",
		"size", len(payload),
		"type", mimeType,
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media put failed", "error", err)
		} else {
			log.DebugContext(ctx, "media put", "id", mediaID)
		}
	}()

	if maxSize := mediaSvc.cfg.MaxSize; maxSize > 0 && int64(len(payload)) > maxSize {
		return "", fmt.Errorf("%w: %w: %d exceeds %d",
			domain.ErrStorageFailure, domain.ErrMediaTooLarge, len(payload), maxSize)
	}

	mediaID, err = mediaSvc.freshID(ctx)
	if err != nil {
		return "", err
	}

	//nolint:exhaustruct
	media := domain.NewMedia(payload, domain.MediaMeta{
		ID:        mediaID,
		MIMEType:  mimeType,
		CreatedAt: mediaSvc.now().UTC(),
	})

	if err := mediaSvc.store(ctx, media); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	return mediaID, nil
}

// Get implements MediaStore.Get.
func (mediaSvc *BlobMediaService) Get(
	ctx context.Context,
	rawID domain.MediaID,
) (media domain.Media, found bool, err error) {
	log := mediaSvc.log.With(logging.Group("media", "id", rawID))

	defer func() {
		switch {
		case err != nil:
			log.ErrorContext(ctx, "media get failed", "error", err)
		case !found:
			log.DebugContext(ctx, "media not found")
		default:
			log.DebugContext(ctx, "media fetched", "size", media.Size(), "type", media.MIMEType())
		}
	}()

	mediaID, err := domain.ParseMediaID(string(rawID))
	if err != nil {
		// Empty or malformed IDs can never name a record.
		return domain.Media{}, false, nil
	}

	// Lock meta blob
	unlockMeta, err := mediaSvc.metaRepo.Lock(ctx, mediaID, false)
	if err != nil {
		return domain.Media{}, false, fmt.Errorf("%w: lock meta: %w", domain.ErrStorageUnavailable, err)
	}
	defer unlockMeta()

	mediaMeta, err := mediaSvc.fetchMeta(ctx, mediaID)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Media{}, false, nil
	} else if err != nil {
		return domain.Media{}, false, fmt.Errorf("%w: fetch meta: %w", domain.ErrStorageUnavailable, err)
	}

	dataID := domain.BlobID(mediaMeta.Hash)

	// Lock data blob
	unlockData, err := mediaSvc.dataRepo.Lock(ctx, dataID, false)
	if err != nil {
		return domain.Media{}, false, fmt.Errorf("%w: lock data: %w", domain.ErrStorageUnavailable, err)
	}
	defer unlockData()

	dataBlob, err := mediaSvc.dataRepo.Fetch(ctx, dataID)
	if errors.Is(err, fs.ErrNotExist) {
		log.WarnContext(ctx, "media payload missing", "dataID", dataID)

		return domain.Media{}, false, nil
	} else if err != nil {
		return domain.Media{}, false, fmt.Errorf("%w: fetch data: %w", domain.ErrStorageUnavailable, err)
	}

	return domain.NewMedia(dataBlob.Bytes(), mediaMeta), true, nil
}

// Delete implements MediaStore.Delete.
func (mediaSvc *BlobMediaService) Delete(ctx context.Context, mediaID domain.MediaID) error {
	_, _, err := mediaSvc.Remove(ctx, mediaID)

	return err
}

// Remove implements PruningStore.Remove.
func (mediaSvc *BlobMediaService) Remove(
	ctx context.Context,
	rawID domain.MediaID,
) (pruned bool, dataID domain.BlobID, err error) {
	log := mediaSvc.log.With(logging.Group("media", "id", rawID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "media deleted", "pruned", pruned, "dataID", dataID)
		}
	}()

	mediaID, err := domain.ParseMediaID(string(rawID))
	if err != nil {
		return false, "", nil
	}

	// Lock meta blob
	unlockMeta, err := mediaSvc.metaRepo.Lock(ctx, mediaID, true)
	if err != nil {
		return false, "", fmt.Errorf("%w: lock meta: %w", domain.ErrStorageFailure, err)
	}
	defer unlockMeta()

	mediaMeta, err := mediaSvc.fetchMeta(ctx, mediaID)
	if errors.Is(err, fs.ErrNotExist) {
		return false, "", nil
	} else if err != nil {
		return false, "", fmt.Errorf("%w: fetch meta: %w", domain.ErrStorageFailure, err)
	}

	dataID = domain.BlobID(mediaMeta.Hash)

	// Lock data blob
	unlockData, err := mediaSvc.dataRepo.Lock(ctx, dataID, true)
	if err != nil {
		return false, dataID, fmt.Errorf("%w: lock data: %w", domain.ErrStorageFailure, err)
	}
	defer unlockData()

	// The record disappears first, so a failed prune leaves an orphaned
	// payload rather than a record without one.
	if err := mediaSvc.metaRepo.Delete(ctx, mediaID); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, dataID, fmt.Errorf("%w: delete meta: %w", domain.ErrStorageFailure, err)
	}

	pruned, err = mediaSvc.pruneMedia(ctx, mediaMeta)
	if err != nil {
		return false, dataID, fmt.Errorf("%w: prune media: %w", domain.ErrStorageFailure, err)
	}

	return pruned, dataID, nil
}

// freshID draws IDs until one is unused.
func (mediaSvc *BlobMediaService) freshID(ctx context.Context) (domain.MediaID, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		mediaID, err := mediaSvc.newID()
		if err != nil {
			return "", fmt.Errorf("%w: new media id: %w", domain.ErrStorageFailure, err)
		}

		exists, err := mediaSvc.metaRepo.Exists(ctx, mediaID)
		if err != nil {
			return "", fmt.Errorf("%w: check media id: %w", domain.ErrStorageUnavailable, err)
		}

		if !exists {
			return mediaID, nil
		}

		mediaSvc.log.WarnContext(ctx, "media id collision", "id", mediaID, "attempt", attempt)
	}

	return "", fmt.Errorf("%w: %w after %d attempts",
		domain.ErrStorageFailure, domain.ErrMediaIDCollision, maxIDAttempts)
}

//nolint:cyclop
func (mediaSvc *BlobMediaService) store(ctx context.Context, media domain.Media) (err error) {
	// Lock meta blob
	metaBlob, err := media.Meta().AsBlob()
	if err != nil {
		return fmt.Errorf("convert meta to blob: %w", err)
	}

	unlockMeta, err := mediaSvc.metaRepo.Lock(ctx, metaBlob.ID, true)
	if err != nil {
		return fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	if exists, err := mediaSvc.metaRepo.Exists(ctx, metaBlob.ID); err != nil {
		return fmt.Errorf("check meta: %w", err)
	} else if exists {
		return fmt.Errorf("%w: %s", domain.ErrMediaIDCollision, metaBlob.ID)
	}

	// Lock data blob
	dataBlob := media.AsBlob()

	unlockData, err := mediaSvc.dataRepo.Lock(ctx, dataBlob.ID, true)
	if err != nil {
		return fmt.Errorf("lock data: %w", err)
	}
	defer unlockData()

	// Store data
	dataExists, err := mediaSvc.dataRepo.Exists(ctx, dataBlob.ID)
	if err != nil {
		return fmt.Errorf("check data: %w", err)
	}

	if !dataExists {
		if err := mediaSvc.dataRepo.Store(ctx, dataBlob); err != nil {
			return fmt.Errorf("store data: %w", err)
		}
	}

	if err := mediaSvc.addBackrefs(ctx, dataBlob.ID, metaBlob.ID); err != nil {
		mediaSvc.rollbackData(ctx, dataBlob.ID, dataExists)

		return fmt.Errorf("add backrefs: %w", err)
	}

	// Store meta last: a record becomes visible only once its payload is durable.
	if err := mediaSvc.metaRepo.Store(ctx, metaBlob); err != nil {
		if _, pruneErr := mediaSvc.pruneMedia(ctx, media.Meta()); pruneErr != nil {
			mediaSvc.log.WarnContext(ctx, "media rollback failed", "id", metaBlob.ID, "error", pruneErr)
		}

		return fmt.Errorf("store meta: %w", err)
	}

	return nil
}

func (mediaSvc *BlobMediaService) rollbackData(ctx context.Context, dataID domain.BlobID, existed bool) {
	if existed {
		return
	}

	if err := mediaSvc.dataRepo.Delete(ctx, dataID); err != nil {
		mediaSvc.log.WarnContext(ctx, "media rollback failed", "dataID", dataID, "error", err)
	}
}

func (mediaSvc *BlobMediaService) fetchMeta(
	ctx context.Context,
	mediaID domain.MediaID,
) (meta domain.MediaMeta, err error) {
	metaBlob, err := mediaSvc.metaRepo.Fetch(ctx, mediaID)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("fetch meta: %w", err)
	}

	mediaMeta, err := domain.NewMediaMetaFromBlob(metaBlob)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("convert meta blob: %w", err)
	}

	return mediaMeta, nil
}

func (mediaSvc *BlobMediaService) fetchBackrefs(
	ctx context.Context,
	blobID domain.BlobID,
) (backrefs []domain.BlobID, err error) {
	defer func() {
		log := mediaSvc.log.With(logging.Group("media",
			"dataID", blobID,
			"backrefs", backrefs,
		))

		if err != nil {
			log.ErrorContext(ctx, "media fetch-backrefs failed", "error", err)
		} else {
			log.DebugContext(ctx, "media backrefs fetched")
		}
	}()

	backrefBlob, err := mediaSvc.backrefRepo.Fetch(ctx, blobID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("fetch backref: %w", err)
	}

	for _, id := range bytes.Split(backrefBlob.Bytes(), []byte("\n")) {
		if len(id) > 0 {
			backrefs = append(backrefs, domain.BlobID(id))
		}
	}

	return backrefs, nil
}

func (mediaSvc *BlobMediaService) storeBackrefs(
	ctx context.Context,
	blobID domain.BlobID,
	backrefs []domain.BlobID,
) (err error) {
	defer func() {
		log := mediaSvc.log.With(logging.Group("media",
			"dataID", blobID,
			"backrefs", backrefs,
		))

		if err != nil {
			log.ErrorContext(ctx, "media store-backrefs failed", "error", err)
		} else {
			log.DebugContext(ctx, "media backrefs stored")
		}
	}()

	backrefBytes := make([][]byte, len(backrefs))
	for i, id := range backrefs {
		backrefBytes[i] = []byte(id)
	}

	backrefBlob := domain.NewBlob(blobID, bytes.Join(backrefBytes, []byte("\n")))

	if err := mediaSvc.backrefRepo.Store(ctx, backrefBlob); err != nil {
		return fmt.Errorf("store backref: %w", err)
	}

	return nil
}

func (mediaSvc *BlobMediaService) addBackrefs(
	ctx context.Context,
	dataID domain.BlobID,
	metaIDs ...domain.BlobID,
) error {
	backrefs, err := mediaSvc.fetchBackrefs(ctx, dataID)
	if err != nil {
		return fmt.Errorf("fetch backrefs: %w", err)
	}

	for _, id := range metaIDs {
		if !slices.Contains(backrefs, id) {
			backrefs = append(backrefs, id)
		}
	}

	if err := mediaSvc.storeBackrefs(ctx, dataID, backrefs); err != nil {
		return fmt.Errorf("store backrefs: %w", err)
	}

	return nil
}

func (mediaSvc *BlobMediaService) pruneMedia(ctx context.Context, mediaMeta domain.MediaMeta) (pruned bool, err error) {
	defer func() {
		log := mediaSvc.log.With(logging.Group("media", "id", mediaMeta.ID, "dataID", mediaMeta.Hash))

		if err != nil {
			log.ErrorContext(ctx, "media pruning failed", "error", err)
		} else {
			log.DebugContext(ctx, "media backrefs updated", "pruned", pruned)
		}
	}()

	dataID := domain.BlobID(mediaMeta.Hash)

	backrefs, err := mediaSvc.fetchBackrefs(ctx, dataID)
	if err != nil {
		return false, fmt.Errorf("fetch backrefs: %w", err)
	}

	backrefs = slices.DeleteFunc(backrefs, func(v domain.BlobID) bool {
		return v == mediaMeta.ID
	})

	if len(backrefs) > 0 {
		if err := mediaSvc.storeBackrefs(ctx, dataID, backrefs); err != nil {
			return false, fmt.Errorf("store backrefs: %w", err)
		}

		return false, nil
	}

	if err := mediaSvc.dataRepo.Delete(ctx, dataID); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("delete data: %w", err)
	}

	if err := mediaSvc.backrefRepo.Delete(ctx, dataID); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("delete backrefs: %w", err)
	}

	return true, nil
}
