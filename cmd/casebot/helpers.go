package main

import (
	"encoding/json"
	"github.com/myrjola/casebot/internal/errors"
	"log/slog"
	"net/http"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri))
	http.Error(w, http.StatusText(status), status)
}

// storeError maps case store errors to responses.
func (app *application) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound)
	case errors.Is(err, errors.ErrInvalidEvidence):
		app.clientError(w, r, http.StatusBadRequest)
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
