// Package pprofserver exposes the runtime profiles on a separate listener.
package pprofserver

import (
	"context"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServer(addr string) *http.Server {
	mux := http.NewServeMux()
	Handle(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}
}

// Launch serves pprof at addr until ctx is done. Keep addr on a loopback interface, e.g., localhost:6060, so
// that the profiles are not open to the world.
func Launch(ctx context.Context, addr string, logger *slog.Logger) {
	logger = logger.With(slog.String("source", "pprof"))
	srv := newServer(addr)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.LogAttrs(ctx, slog.LevelError, "pprof server stopped", errors.SlogError(err))
		}
	}()
}
