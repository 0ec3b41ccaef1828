package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/lockbox/internal/logutil"
)

const (
	shutdownGrace = 30 * time.Second
)

// Serve listens on bind and serves handler until ctx is cancelled, then
// shuts down gracefully.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lst, handler)
}

// ServeListener is like Serve but takes ownership of an existing listener.
func ServeListener(ctx context.Context, lst net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 5,
	}
	// requests keep the values of ctx but must outlive its cancellation
	// while Shutdown drains them
	base := context.WithoutCancel(ctx)
	server.BaseContext = func(net.Listener) context.Context { return base }
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lst.Addr().String()).Logger()

	served := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		served <- server.Serve(lst)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-served
	if err != nil {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
