package mediasvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
)

// Handle owns the process wide media store. The underlying repositories are
// opened on first use and kept for the lifetime of the Handle; there is no
// teardown. Pass the Handle to every component that needs media persistence.
type Handle struct {
	factory blob.RepositoryFactory
	cfg     MediaConfig
	log     logging.Logger

	mu  sync.Mutex
	svc *BlobMediaService
}

var _ PruningStore = (*Handle)(nil)

// NewHandle returns an uninitialized Handle. Nothing is opened until Init or
// the first store operation.
func NewHandle(factory blob.RepositoryFactory, cfg MediaConfig) *Handle {
	return &Handle{
		factory: factory,
		cfg:     cfg,
		log:     logging.GetLogger("svc.mediasvc.handle"),
	}
}

// Init opens the store if necessary and returns it. It is idempotent: once
// initialized the same service is returned. A failed attempt is reported as
// domain.ErrStorageUnavailable and retried on the next call.
func (h *Handle) Init(ctx context.Context) (svc *BlobMediaService, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.svc != nil {
		return h.svc, nil
	}

	defer func() {
		if err != nil {
			h.log.ErrorContext(ctx, "media store init failed", "error", err)
		} else {
			h.log.InfoContext(ctx, "media store initialized", "max_size", h.cfg.MaxSize)
		}
	}()

	svc, err = NewBlobMediaService(ctx, h.factory, h.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	h.svc = svc

	return svc, nil
}

// MaxSize implements PruningStore.MaxSize. It does not open the store.
func (h *Handle) MaxSize() int64 {
	return h.cfg.MaxSize
}

// Put implements MediaStore.Put.
func (h *Handle) Put(ctx context.Context, payload []byte, mimeType string) (domain.MediaID, error) {
	svc, err := h.Init(ctx)
	if err != nil {
		return "", err
	}

	return svc.Put(ctx, payload, mimeType)
}

// Get implements MediaStore.Get.
func (h *Handle) Get(ctx context.Context, mediaID domain.MediaID) (domain.Media, bool, error) {
	svc, err := h.Init(ctx)
	if err != nil {
		return domain.Media{}, false, err
	}

	return svc.Get(ctx, mediaID)
}

// Delete implements MediaStore.Delete.
func (h *Handle) Delete(ctx context.Context, mediaID domain.MediaID) error {
	svc, err := h.Init(ctx)
	if err != nil {
		return err
	}

	return svc.Delete(ctx, mediaID)
}

// Remove implements PruningStore.Remove.
func (h *Handle) Remove(ctx context.Context, mediaID domain.MediaID) (bool, domain.BlobID, error) {
	svc, err := h.Init(ctx)
	if err != nil {
		return false, "", err
	}

	return svc.Remove(ctx, mediaID)
}
