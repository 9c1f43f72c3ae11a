package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on
	ServerAddr string `env:"SERVER_ADDR" default:"127.0.0.1:8080"`

	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds the graceful shutdown once the context is cancelled
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	// AllowedOrigins is a comma separated CORS origin list, e.g. "http://localhost:5173"
	AllowedOrigins string `env:"ALLOWED_ORIGINS" default:""`
}

// HTTPTransport defines the interface for HTTP handlers that can serve requests.
type HTTPTransport interface {
	http.Handler
}

// Wrap applies the standard middleware chain: tracing, logging, panic
// recovery and CORS, outermost first.
func Wrap(handler HTTPTransport, cfg HTTPTransportConfig, log logging.Logger) http.Handler {
	var wrapped http.Handler = handler

	wrapped = CORSMiddleware(wrapped, cfg)
	wrapped = RescueingMiddleware(wrapped, log)
	wrapped = LoggingMiddleware(wrapped, log)
	wrapped = TracingMiddleware(wrapped)

	return wrapped
}

// ListenAndServe starts an HTTP server with the given handler and configuration.
// It sets up standard middleware for logging, tracing, panic recovery and CORS.
// Cancelling ctx shuts the server down gracefully; that is not an error.
func ListenAndServe(ctx context.Context, handler HTTPTransport, cfg HTTPTransportConfig) (err error) {
	log := logging.GetLogger("infra.transport.http")

	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, sock, handler, cfg, log)
}

// Serve is ListenAndServe on an existing listener.
func Serve(
	ctx context.Context,
	sock net.Listener,
	handler HTTPTransport,
	cfg HTTPTransportConfig,
	log logging.Logger,
) error {
	//nolint:exhaustruct
	server := &http.Server{
		Handler:           Wrap(handler, cfg, log),
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)

	go func() {
		log.InfoContext(ctx, "listening", "addr", sock.Addr().String())

		serveErr <- server.Serve(sock)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	log.InfoContext(ctx, "shutting down", "timeout", cfg.ShutdownTimeout.String())

	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()

		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}
