package main

import (
	"github.com/myrjola/casebot/internal/models"
	"net/http"
	"path"
)

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// showState returns the last persisted AppState. It reads the store instead of the engine so that a transition
// waiting on a slow collaborator does not block the request.
func (app *application) showState(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, app.stores.States.Load(r.Context()))
}

func (app *application) listCases(w http.ResponseWriter, r *http.Request) {
	overviews, err := app.stores.Cases.List(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if overviews == nil {
		overviews = []models.CaseOverview{}
	}
	app.writeJSON(w, r, overviews)
}

type caseResponse struct {
	Case         models.Case `json:"case"`
	MissingFiles []string    `json:"missing_files"`
}

func (app *application) showCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := app.stores.Cases.Load(r.Context(), id)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	missing, err := app.stores.Cases.Verify(r.Context(), id)
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}
	app.writeJSON(w, r, caseResponse{Case: c, MissingFiles: missing})
}

// caseFile serves a raw file referenced by the case record, e.g., photos/ev-0001.jpg.
func (app *application) caseFile(w http.ResponseWriter, r *http.Request) {
	f, err := app.stores.Cases.OpenFile(r.Context(), r.PathValue("id"), r.PathValue("path"))
	if err != nil {
		app.storeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(r.PathValue("path"))+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
