package mediaref

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
	http_ "github.com/mkrupp/gymtracker/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the reference endpoints.
type HTTPTransportConfig struct {
	// AllowedOrigin restricts websocket upgrades to one Origin; "*" allows all.
	AllowedOrigin string `env:"ALLOWED_ORIGIN" default:"*"`

	// PingInterval is how often idle websocket connections are pinged.
	PingInterval time.Duration `env:"PING_INTERVAL" default:"30s"`

	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" default:"10s"`
}

// Message is pushed to the websocket client on every state transition.
type Message struct {
	State     string           `json:"state"`
	Reference string           `json:"reference,omitempty"`
	Kind      domain.MediaKind `json:"kind,omitempty"`
}

// NewMessage converts a view into its wire form.
func NewMessage(view View) Message {
	return Message{
		State:     view.State.String(),
		Reference: view.Handle.Reference,
		Kind:      view.Handle.Kind,
	}
}

// HTTPTransport serves live references and the media binding websocket:
// - GET <prefix>{token}: bytes behind a live reference
// - GET /ws/media: one binding per connection
type HTTPTransport struct {
	mgr      *Manager
	cfg      HTTPTransportConfig
	log      logging.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates the transport for mgr.
func NewHTTPTransport(mgr *Manager, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		mgr: mgr,
		cfg: cfg,
		log: logging.GetLogger("svc.mediaref.http_transport"),
	}

	//nolint:exhaustruct
	ht.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ht.checkOrigin,
	}

	router := chi.NewRouter()
	router.Get(mgr.Registry().Prefix()+"{token}", ht.HandleReference)
	router.Get("/ws/media", ht.HandleWebsocket)
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

func (ht *HTTPTransport) checkOrigin(r *http.Request) bool {
	if ht.cfg.AllowedOrigin == "" || ht.cfg.AllowedOrigin == "*" {
		return true
	}

	return r.Header.Get("Origin") == ht.cfg.AllowedOrigin
}

// HandleReference writes the payload behind a live reference.
func (ht *HTTPTransport) HandleReference(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	payload, mimeType, ok := ht.mgr.Registry().LookupToken(token)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(payload); err != nil {
		ht.log.WarnContext(r.Context(), "reference write failed", "token", token, "error", err)
	}
}

// HandleWebsocket binds one UI element to the connection. Every message the
// client sends is an Input; the connection closing unmounts the element.
func (ht *HTTPTransport) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleWebsocket(w, r)
}

func (ht *HTTPTransport) handleWebsocket(w http.ResponseWriter, r *http.Request) (err error) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := ht.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ht.log.ErrorContext(ctx, "websocket upgrade failed", "error", err)

		return fmt.Errorf("upgrade: %w", err)
	}
	defer conn.Close()

	out := newOutbox()
	binding := ht.mgr.Bind(out.push)
	log := ht.log.With(logging.Group("binding", "id", binding.ID()))

	defer func() {
		if err != nil && !isClosure(err) {
			log.ErrorContext(ctx, "websocket failed", "error", err)
		} else {
			log.DebugContext(ctx, "websocket closed")
		}
	}()

	var wg sync.WaitGroup

	wg.Add(1)

	// Once the writer is gone the element cannot be updated; closing the
	// connection unblocks the reader so the binding is released.
	go func() {
		defer wg.Done()
		defer conn.Close()
		defer cancel()

		if err := ht.writeLoop(ctx, conn, out); err != nil && !isClosure(err) {
			log.WarnContext(ctx, "websocket write failed", "error", err)
		}
	}()

	log.DebugContext(ctx, "websocket opened", "remote", r.RemoteAddr)

	err = ht.readLoop(ctx, conn, binding)
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	binding.Close()
	cancel()
	wg.Wait()

	return err
}

func (ht *HTTPTransport) readLoop(ctx context.Context, conn *websocket.Conn, binding *Binding) error {
	if ht.cfg.PingInterval > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * ht.cfg.PingInterval))
		})
	}

	for {
		if ht.cfg.PingInterval > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(2 * ht.cfg.PingInterval)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		var in Input
		if err := conn.ReadJSON(&in); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		binding.Set(ctx, in)
	}
}

func (ht *HTTPTransport) writeLoop(ctx context.Context, conn *websocket.Conn, out *outbox) error {
	var tick <-chan time.Time

	if ht.cfg.PingInterval > 0 {
		ticker := time.NewTicker(ht.cfg.PingInterval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(ht.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

			return nil
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ht.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-out.ready:
			for _, view := range out.drain() {
				if err := conn.SetWriteDeadline(time.Now().Add(ht.cfg.WriteTimeout)); err != nil {
					return fmt.Errorf("set write deadline: %w", err)
				}

				if err := conn.WriteJSON(NewMessage(view)); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	}
}

func isClosure(err error) bool {
	var closeErr *websocket.CloseError

	return errors.As(err, &closeErr) || errors.Is(err, context.Canceled)
}

// outbox queues views without ever blocking the producer.
type outbox struct {
	mu    sync.Mutex
	views []View
	ready chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

func (o *outbox) push(view View) {
	o.mu.Lock()
	o.views = append(o.views, view)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox) drain() []View {
	o.mu.Lock()
	defer o.mu.Unlock()

	views := o.views
	o.views = nil

	return views
}
