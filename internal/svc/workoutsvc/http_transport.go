package workoutsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	http_ "github.com/mkrupp/gymtracker/internal/infra/transport/http"
)

// StorageFailureMessage is shown when the media store rejected a write.
const StorageFailureMessage = "storage full or file too large"

// multipartOverhead is allowed on top of the media size limit for the name
// field, part headers and boundaries.
const multipartOverhead = 64 << 10

var ErrMalformedRequest = errors.New("malformed request")

// Thumbnailer serves stored media, optionally resized.
type Thumbnailer interface {
	Get(ctx context.Context, mediaID domain.MediaID) (domain.Media, bool, error)
	Thumbnail(ctx context.Context, mediaID domain.MediaID, width int) (domain.Media, bool, error)
}

// UpdateSource reports whether a newer release exists.
type UpdateSource interface {
	Check(ctx context.Context) (domain.UpdateStatus, error)
	Last() (domain.UpdateStatus, bool)
}

// HTTPTransportConfig contains configuration parameters for the workout API.
type HTTPTransportConfig struct {
	// MultipartFileName is the form field carrying an exercise's media file
	MultipartFileName string `env:"MULTIPART_FILE_NAME" default:"upload"`

	// MultipartFormMaxMemory is how much of a multipart form is kept in memory
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_SIZE" default:"10485760"`

	// URLWidthParam is the query parameter selecting a thumbnail width
	URLWidthParam string `env:"URL_WIDTH_PARAM" default:"width"`
}

// HTTPTransport exposes the workout service as a JSON API.
type HTTPTransport struct {
	svc     *Service
	media   Thumbnailer
	updates UpdateSource
	cfg     HTTPTransportConfig
	log     logging.Logger
	router  chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the workout API. media and updates may be nil, in
// which case their endpoints answer 404.
func NewHTTPTransport(svc *Service, media Thumbnailer, updates UpdateSource, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		svc:     svc,
		media:   media,
		updates: updates,
		cfg:     cfg,
		log:     logging.GetLogger("svc.workoutsvc.http_transport"),
	}

	router := chi.NewRouter()
	router.Route("/days", func(r chi.Router) {
		r.Get("/", ht.HandleListDays)
		r.Post("/", ht.HandleAddDay)
		r.Delete("/{dayID}", ht.HandleDeleteDay)
		r.Get("/{dayID}/exercises", ht.HandleListExercises)
		r.Post("/{dayID}/exercises", ht.HandleAddExercise)
	})
	router.Get("/exercises/search", ht.HandleSearchExercises)
	router.Delete("/exercises/{exerciseID}", ht.HandleDeleteExercise)
	router.Get("/themes", ht.HandleListThemes)
	router.Get("/theme", ht.HandleGetTheme)
	router.Put("/theme", ht.HandleSetTheme)
	router.Get("/media/{mediaID}", ht.HandleMedia)
	router.Get("/update", ht.HandleUpdate)
	ht.router = router

	return ht
}

// Routes returns the transport's router for mounting.
func (ht *HTTPTransport) Routes() chi.Router {
	return ht.router
}

func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// statusOf maps service errors to HTTP status codes and client messages.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusInsufficientStorage, StorageFailureMessage
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrDayNotFound),
		errors.Is(err, domain.ErrExerciseNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrUnknownTheme),
		errors.Is(err, domain.ErrInvalidMediaID),
		errors.Is(err, domain.ErrNoMediaID),
		errors.Is(err, domain.ErrInvalidWidth),
		errors.Is(err, domain.ErrThumbnailUnsupported),
		errors.Is(err, domain.ErrImageTypeNotSupported),
		errors.Is(err, domain.ErrImageTooLarge),
		errors.Is(err, ErrInvalidLegacyExport),
		errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUpdateCheckFailed):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (ht *HTTPTransport) writeError(w http.ResponseWriter, err error) {
	status, msg := statusOf(err)
	ht.writeJSON(w, status, errorResponse{Error: msg})
}

func (ht *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ht.log.Warn("encode response failed", "error", err)
	}
}

// logged runs handle and logs its outcome in one place.
func (ht *HTTPTransport) logged(op string, handle func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

		if err := handle(w, r); err != nil {
			log.ErrorContext(r.Context(), op+" failed", "error", err)
			ht.writeError(w, err)
		} else {
			log.DebugContext(r.Context(), op+" ok")
		}
	}
}

type addDayRequest struct {
	Title string `json:"title"`
}

// HandleListDays answers GET /days.
func (ht *HTTPTransport) HandleListDays(w http.ResponseWriter, r *http.Request) {
	ht.logged("list days", func(w http.ResponseWriter, r *http.Request) error {
		days, err := ht.svc.ListDays(r.Context())
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusOK, days)

		return nil
	})(w, r)
}

// HandleAddDay answers POST /days with a JSON body {"title": ...}.
func (ht *HTTPTransport) HandleAddDay(w http.ResponseWriter, r *http.Request) {
	ht.logged("add day", func(w http.ResponseWriter, r *http.Request) error {
		var req addDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}

		day, err := ht.svc.AddDay(r.Context(), req.Title)
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusCreated, day)

		return nil
	})(w, r)
}

// HandleDeleteDay answers DELETE /days/{dayID}.
func (ht *HTTPTransport) HandleDeleteDay(w http.ResponseWriter, r *http.Request) {
	ht.logged("delete day", func(w http.ResponseWriter, r *http.Request) error {
		if err := ht.svc.DeleteDay(r.Context(), chi.URLParam(r, "dayID")); err != nil {
			return err
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})(w, r)
}

// HandleListExercises answers GET /days/{dayID}/exercises.
func (ht *HTTPTransport) HandleListExercises(w http.ResponseWriter, r *http.Request) {
	ht.logged("list exercises", func(w http.ResponseWriter, r *http.Request) error {
		exercises, err := ht.svc.ListExercises(r.Context(), chi.URLParam(r, "dayID"))
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusOK, exercises)

		return nil
	})(w, r)
}

// HandleAddExercise answers POST /days/{dayID}/exercises. The body is a
// multipart form with a "name" field and an optional media file.
func (ht *HTTPTransport) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	ht.logged("add exercise", func(w http.ResponseWriter, r *http.Request) error {
		maxSize := ht.svc.MaxUploadSize()
		if maxSize > 0 {
			if r.ContentLength > maxSize+multipartOverhead {
				return errUploadTooLarge(r.ContentLength, maxSize)
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
		}

		if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return errUploadTooLarge(maxBytesErr.Limit, maxSize)
			}

			return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}

		upload, err := ht.readUpload(r, maxSize)
		if err != nil {
			return err
		}

		ex, err := ht.svc.AddExercise(r.Context(), chi.URLParam(r, "dayID"), r.FormValue("name"), upload)
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusCreated, ex)

		return nil
	})(w, r)
}

func errUploadTooLarge(size, maxSize int64) error {
	return fmt.Errorf("%w: %w: upload of %d bytes exceeds %d",
		domain.ErrStorageFailure, domain.ErrMediaTooLarge, size, maxSize)
}

func (ht *HTTPTransport) readUpload(r *http.Request, maxSize int64) (*Upload, error) {
	file, header, err := r.FormFile(ht.cfg.MultipartFileName)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil //nolint:nilnil
	} else if err != nil {
		return nil, fmt.Errorf("%w: form file: %w", ErrMalformedRequest, err)
	}
	defer file.Close()

	if maxSize > 0 && header.Size > maxSize {
		return nil, errUploadTooLarge(header.Size, maxSize)
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}

	return &Upload{Payload: payload, MIMEType: header.Header.Get("Content-Type")}, nil
}

// HandleDeleteExercise answers DELETE /exercises/{exerciseID}.
func (ht *HTTPTransport) HandleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	ht.logged("delete exercise", func(w http.ResponseWriter, r *http.Request) error {
		if err := ht.svc.DeleteExercise(r.Context(), chi.URLParam(r, "exerciseID")); err != nil {
			return err
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})(w, r)
}

// HandleSearchExercises answers GET /exercises/search?q=&day=.
func (ht *HTTPTransport) HandleSearchExercises(w http.ResponseWriter, r *http.Request) {
	ht.logged("search exercises", func(w http.ResponseWriter, r *http.Request) error {
		query := r.URL.Query()

		exercises, err := ht.svc.SearchExercises(r.Context(), query.Get("day"), query.Get("q"))
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusOK, exercises)

		return nil
	})(w, r)
}

// HandleListThemes answers GET /themes.
func (ht *HTTPTransport) HandleListThemes(w http.ResponseWriter, _ *http.Request) {
	ht.writeJSON(w, http.StatusOK, ht.svc.Themes())
}

type setThemeRequest struct {
	Key string `json:"key"`
}

// HandleGetTheme answers GET /theme.
func (ht *HTTPTransport) HandleGetTheme(w http.ResponseWriter, r *http.Request) {
	ht.logged("get theme", func(w http.ResponseWriter, r *http.Request) error {
		theme, err := ht.svc.CurrentTheme(r.Context())
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusOK, theme)

		return nil
	})(w, r)
}

// HandleSetTheme answers PUT /theme with a JSON body {"key": ...}.
func (ht *HTTPTransport) HandleSetTheme(w http.ResponseWriter, r *http.Request) {
	ht.logged("set theme", func(w http.ResponseWriter, r *http.Request) error {
		var req setThemeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}

		theme, err := ht.svc.SetTheme(r.Context(), req.Key)
		if err != nil {
			return err
		}

		ht.writeJSON(w, http.StatusOK, theme)

		return nil
	})(w, r)
}

// HandleMedia answers GET /media/{mediaID}[?width=N] with the stored payload
// or a resized copy of it.
func (ht *HTTPTransport) HandleMedia(w http.ResponseWriter, r *http.Request) {
	ht.logged("get media", func(w http.ResponseWriter, r *http.Request) error {
		if ht.media == nil {
			http.NotFound(w, r)

			return nil
		}

		mediaID, err := domain.ParseMediaID(chi.URLParam(r, "mediaID"))
		if err != nil {
			return fmt.Errorf("parse media id: %w", err)
		}

		var (
			media domain.Media
			found bool
		)

		if raw := r.URL.Query().Get(ht.cfg.URLWidthParam); raw != "" {
			width, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: %q", domain.ErrInvalidWidth, raw)
			}

			media, found, err = ht.media.Thumbnail(r.Context(), mediaID, width)
			if err != nil {
				return fmt.Errorf("thumbnail: %w", err)
			}
		} else {
			media, found, err = ht.media.Get(r.Context(), mediaID)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
		}

		if !found {
			http.NotFound(w, r)

			return nil
		}

		w.Header().Set("Content-Type", media.MIMEType())
		w.Header().Set("Content-Length", strconv.FormatInt(media.Size(), 10))
		w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)

		if _, err := media.WriteTo(w); err != nil {
			ht.log.WarnContext(r.Context(), "media write failed", "media", mediaID, "error", err)
		}

		return nil
	})(w, r)
}

// HandleUpdate answers GET /update with the latest known update status,
// checking once if nothing was checked yet.
func (ht *HTTPTransport) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ht.logged("update status", func(w http.ResponseWriter, r *http.Request) error {
		if ht.updates == nil {
			http.NotFound(w, r)

			return nil
		}

		status, ok := ht.updates.Last()
		if !ok {
			var err error

			status, err = ht.updates.Check(r.Context())
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
		}

		ht.writeJSON(w, http.StatusOK, status)

		return nil
	})(w, r)
}
