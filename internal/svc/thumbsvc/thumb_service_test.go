package thumbsvc_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/repo/blob"
	"github.com/mkrupp/gymtracker/internal/svc/mediasvc"
	"github.com/mkrupp/gymtracker/internal/svc/thumbsvc"
)

// memRepository is an in-memory blob.Repository.
type memRepository struct {
	mu    sync.Mutex
	blobs map[domain.BlobID][]byte
}

func newMemRepo() *memRepository {
	return &memRepository{blobs: make(map[domain.BlobID][]byte)}
}

func (m *memRepository) Lock(context.Context, domain.BlobID, bool) (func(), error) {
	return func() {}, nil
}

func (m *memRepository) Exists(_ context.Context, id domain.BlobID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *memRepository) Store(_ context.Context, b *domain.Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[b.ID] = bytes.Clone(b.Body)
	return nil
}

func (m *memRepository) Fetch(_ context.Context, id domain.BlobID) (*domain.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", id, fs.ErrNotExist)
	}
	return domain.NewBlob(id, data), nil
}

func (m *memRepository) Delete(_ context.Context, id domain.BlobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		return fmt.Errorf("blob %q: %w", id, fs.ErrNotExist)
	}
	delete(m.blobs, id)
	return nil
}

func (m *memRepository) DeleteAll(_ context.Context, id domain.BlobID, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.blobs {
		if ok, _ := path.Match(string(id)+pattern, string(key)); ok {
			delete(m.blobs, key)
		}
	}
	return nil
}

func (m *memRepository) keys() []domain.BlobID {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]domain.BlobID, 0, len(m.blobs))
	for key := range m.blobs {
		keys = append(keys, key)
	}
	return keys
}

func setupThumbService(t *testing.T) (*thumbsvc.BlobThumbService, *memRepository) {
	t.Helper()

	repos := map[string]*memRepository{}
	factory := func(_ context.Context, name string, ext string) (blob.Repository, error) {
		key := name + "/" + ext
		if repos[key] == nil {
			repos[key] = newMemRepo()
		}
		return repos[key], nil
	}

	ctx := context.Background()

	store, err := mediasvc.NewBlobMediaService(ctx, factory, mediasvc.MediaConfig{MaxSize: 10 << 20})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}

	svc, err := thumbsvc.NewBlobThumbService(ctx, factory, store, thumbsvc.ThumbConfig{
		Interpolator: "bilinear",
		MaxWidth:     512,
	})
	if err != nil {
		t.Fatalf("new thumb service: %v", err)
	}

	return svc, repos["cache/bin"]
}

func testImage(t *testing.T, mimeType string, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer

	var err error

	switch mimeType {
	case thumbsvc.MIMETypeJPEG:
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}

	if err != nil {
		t.Fatalf("encode test image: %v", err)
	}

	return buf.Bytes()
}

// oversizedPNG returns a tiny PNG whose header declares width x height pixels.
func oversizedPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()

	data := testImage(t, thumbsvc.MIMETypePNG, 1, 1)

	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc
	ihdr := data[12:29]
	binary.BigEndian.PutUint32(ihdr[4:8], width)
	binary.BigEndian.PutUint32(ihdr[8:12], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(ihdr))

	return data
}

func TestBlobThumbService_Thumbnail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mimeType   string
		width      int
		wantWidth  int
		wantHeight int
	}{
		{name: "scales png", mimeType: thumbsvc.MIMETypePNG, width: 50, wantWidth: 50, wantHeight: 25},
		{name: "scales jpeg", mimeType: thumbsvc.MIMETypeJPEG, width: 20, wantWidth: 20, wantHeight: 10},
		{name: "does not upscale", mimeType: thumbsvc.MIMETypePNG, width: 400, wantWidth: 200, wantHeight: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, cacheRepo := setupThumbService(t)
			ctx := context.Background()

			mediaID, err := svc.Put(ctx, testImage(t, tt.mimeType, 200, 100), tt.mimeType)
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			for _, wantCached := range []bool{false, true} {
				thumb, found, err := svc.Thumbnail(ctx, mediaID, tt.width)
				if err != nil || !found {
					t.Fatalf("Thumbnail() = %v, %v", found, err)
				}

				cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb.Bytes()))
				if err != nil {
					t.Fatalf("decode thumbnail: %v", err)
				}

				if cfg.Width != tt.wantWidth || cfg.Height != tt.wantHeight {
					t.Errorf("thumbnail size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantWidth, tt.wantHeight)
				}

				if !strings.HasSuffix(thumb.MIMEType(), format) {
					t.Errorf("thumbnail MIME type %q does not match format %q", thumb.MIMEType(), format)
				}

				if thumb.ID() != mediaID {
					t.Errorf("thumbnail ID = %q, want %q", thumb.ID(), mediaID)
				}

				if got := len(cacheRepo.keys()); got != 1 {
					t.Errorf("cache entries = %d, want 1 (cached=%v)", got, wantCached)
				}
			}
		})
	}
}

func TestBlobThumbService_ThumbnailErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   []byte
		mimeType  string
		width     int
		missing   bool
		wantErr   error
		wantFound bool
	}{
		{
			name:     "rejects video",
			payload:  []byte("mp4"),
			mimeType: "video/mp4",
			width:    64,
			wantErr:  domain.ErrThumbnailUnsupported,
		},
		{
			name:     "rejects zero width",
			payload:  []byte("x"),
			mimeType: "image/png",
			width:    0,
			wantErr:  domain.ErrInvalidWidth,
		},
		{
			name:     "rejects width above maximum",
			payload:  []byte("x"),
			mimeType: "image/png",
			width:    4096,
			wantErr:  domain.ErrInvalidWidth,
		},
		{
			name:     "rejects unknown image types",
			payload:  []byte("heic bytes"),
			mimeType: "image/heic",
			width:    64,
			wantErr:  domain.ErrImageTypeNotSupported,
		},
		{
			name:     "rejects oversized dimensions before decoding",
			payload:  oversizedPNG(t, 100000, 100000),
			mimeType: thumbsvc.MIMETypePNG,
			width:    64,
			wantErr:  domain.ErrImageTooLarge,
		},
		{
			name:    "missing media is not found",
			missing: true,
			width:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := setupThumbService(t)
			ctx := context.Background()

			mediaID := domain.MediaID("media_0000")

			if !tt.missing {
				var err error

				mediaID, err = svc.Put(ctx, tt.payload, tt.mimeType)
				if err != nil {
					t.Fatalf("Put() error = %v", err)
				}
			}

			_, found, err := svc.Thumbnail(ctx, mediaID, tt.width)

			if tt.wantErr == nil {
				if err != nil || found {
					t.Errorf("Thumbnail() = %v, %v; want not found", found, err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Thumbnail() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlobThumbService_DeleteClearsCache(t *testing.T) {
	t.Parallel()

	svc, cacheRepo := setupThumbService(t)
	ctx := context.Background()

	payload := testImage(t, thumbsvc.MIMETypePNG, 64, 64)

	first, err := svc.Put(ctx, payload, thumbsvc.MIMETypePNG)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second, err := svc.Put(ctx, payload, thumbsvc.MIMETypePNG)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for _, width := range []int{16, 32} {
		if _, _, err := svc.Thumbnail(ctx, first, width); err != nil {
			t.Fatalf("Thumbnail() error = %v", err)
		}
	}

	// The payload is still shared with second, so the cache stays.
	if err := svc.Delete(ctx, first); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got := len(cacheRepo.keys()); got != 2 {
		t.Errorf("cache entries = %d, want 2", got)
	}

	if err := svc.Delete(ctx, second); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got := len(cacheRepo.keys()); got != 0 {
		t.Errorf("cache entries after prune = %d, want 0", got)
	}

	if _, found, _ := svc.Get(ctx, second); found {
		t.Error("Get() found deleted media")
	}
}

// removingStore prunes a media item right after handing it to the first Get,
// as if a concurrent Delete won the race.
type removingStore struct {
	mediasvc.PruningStore

	once   sync.Once
	remove func(context.Context, domain.MediaID)
}

func (s *removingStore) Get(ctx context.Context, mediaID domain.MediaID) (domain.Media, bool, error) {
	media, found, err := s.PruningStore.Get(ctx, mediaID)
	s.once.Do(func() { s.remove(ctx, mediaID) })

	return media, found, err //nolint:wrapcheck
}

func TestBlobThumbService_ThumbnailAfterConcurrentPrune(t *testing.T) {
	t.Parallel()

	repos := map[string]*memRepository{}
	factory := func(_ context.Context, name string, ext string) (blob.Repository, error) {
		key := name + "/" + ext
		if repos[key] == nil {
			repos[key] = newMemRepo()
		}
		return repos[key], nil
	}

	ctx := context.Background()

	inner, err := mediasvc.NewBlobMediaService(ctx, factory, mediasvc.MediaConfig{MaxSize: 10 << 20})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}

	mediaID, err := inner.Put(ctx, testImage(t, thumbsvc.MIMETypePNG, 64, 32), thumbsvc.MIMETypePNG)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	store := &removingStore{PruningStore: inner}

	svc, err := thumbsvc.NewBlobThumbService(ctx, factory, store, thumbsvc.ThumbConfig{
		Interpolator: "bilinear",
		MaxWidth:     512,
	})
	if err != nil {
		t.Fatalf("new thumb service: %v", err)
	}

	store.remove = func(ctx context.Context, mediaID domain.MediaID) {
		if pruned, _, err := svc.Remove(ctx, mediaID); err != nil || !pruned {
			t.Errorf("Remove() = %v, %v; want pruned", pruned, err)
		}
	}

	_, found, err := svc.Thumbnail(ctx, mediaID, 16)
	if err != nil || found {
		t.Errorf("Thumbnail() = %v, %v; want not found", found, err)
	}

	if keys := repos["cache/bin"].keys(); len(keys) != 0 {
		t.Errorf("cache entries for pruned payload = %v, want none", keys)
	}
}
