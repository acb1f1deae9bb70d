package main

import (
	"github.com/justinas/alice"
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	api := alice.New(noStore)

	mux.HandleFunc("GET /healthy", app.healthy)
	mux.Handle("GET /api/state", api.ThenFunc(app.showState))
	mux.Handle("GET /api/cases", api.ThenFunc(app.listCases))
	mux.Handle("GET /api/cases/{id}", api.ThenFunc(app.showCase))
	mux.Handle("GET /api/cases/{id}/files/{path...}", api.ThenFunc(app.caseFile))

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
