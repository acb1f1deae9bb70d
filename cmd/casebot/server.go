package main

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	adminIdleTimeout    = time.Minute
	adminRequestTimeout = 5 * time.Second
	adminShutdownGrace  = 5 * time.Second
)

// configureAndStartServer serves the admin API on addr until ctx is done, then drains open requests.
func (app *application) configureAndStartServer(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen admin", slog.String("addr", addr))
	}
	srv := &http.Server{ //nolint:exhaustruct // remaining fields keep their defaults
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
		Handler:           app.routes(),
		IdleTimeout:       adminIdleTimeout,
		ReadTimeout:       adminRequestTimeout,
		WriteTimeout:      adminRequestTimeout,
		ReadHeaderTimeout: time.Second,
	}

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(listener)
	}()
	app.logger.LogAttrs(ctx, slog.LevelInfo, "starting server", slog.Any("Addr", listener.Addr().String()))

	select {
	case err = <-served:
		return errors.Wrap(err, "admin serve")
	case <-ctx.Done():
	}

	app.logger.LogAttrs(context.Background(), slog.LevelInfo, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownGrace)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown admin")
	}
	if err = <-served; !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "admin serve")
	}
	return nil
}
