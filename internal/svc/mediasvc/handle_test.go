package mediasvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
)

func TestHandle_Init(t *testing.T) {
	t.Parallel()

	dataRepo, metaRepo, backrefRepo := newMockRepo(), newMockRepo(), newMockRepo()
	inner := mockFactory(dataRepo, metaRepo, backrefRepo)

	var (
		mu    sync.Mutex
		calls int
		fail  = true
	)

	factory := func(ctx context.Context, name string, ext string) (blob.Repository, error) {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if fail {
			return nil, errors.New("permission denied")
		}

		return inner(ctx, name, ext)
	}

	handle := mediasvc.NewHandle(factory, mediasvc.MediaConfig{MaxSize: 1024})
	ctx := context.Background()

	if calls != 0 {
		t.Fatalf("NewHandle() opened %d repositories, want lazy init", calls)
	}

	if got := handle.MaxSize(); got != 1024 || calls != 0 {
		t.Fatalf("MaxSize() = %d after %d repository opens, want 1024 without opening", got, calls)
	}

	// Failures surface as unavailable storage on every operation.
	if _, err := handle.Put(ctx, []byte("x"), "image/png"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Put() error = %v, want %v", err, domain.ErrStorageUnavailable)
	}

	if _, _, err := handle.Get(ctx, "media_abc"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrStorageUnavailable)
	}

	if err := handle.Delete(ctx, "media_abc"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Delete() error = %v, want %v", err, domain.ErrStorageUnavailable)
	}

	// A failed init is retried.
	mu.Lock()
	fail = false
	mu.Unlock()

	first, err := handle.Init(ctx)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	mu.Lock()
	callsAfterInit := calls
	mu.Unlock()

	second, err := handle.Init(ctx)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if first != second {
		t.Error("Init() returned a different store on second call")
	}

	mediaID, err := handle.Put(ctx, []byte("payload"), "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, found, err := handle.Get(ctx, mediaID); err != nil || !found {
		t.Errorf("Get() = %v, %v; want found", found, err)
	}

	mu.Lock()
	defer mu.Unlock()

	if calls != callsAfterInit {
		t.Errorf("repositories reopened after init: %d calls, want %d", calls, callsAfterInit)
	}
}

func TestHandle_ConcurrentInit(t *testing.T) {
	t.Parallel()

	handle := mediasvc.NewHandle(mockFactory(newMockRepo(), newMockRepo(), newMockRepo()), mediasvc.MediaConfig{})

	var (
		wg   sync.WaitGroup
		svcs = make([]*mediasvc.BlobMediaService, 8)
	)

	for i := range svcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc, err := handle.Init(context.Background())
			if err != nil {
				t.Errorf("Init() error = %v", err)
			}
			svcs[i] = svc
		}()
	}
	wg.Wait()

	for _, svc := range svcs[1:] {
		if svc != svcs[0] {
			t.Fatal("concurrent Init() returned different stores")
		}
	}
}
