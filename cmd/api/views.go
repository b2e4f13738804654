package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/view"
	"github.com/alanchaparro/bi-sub000/internal/response"
)

const sessionHeader = "X-Session-ID"

type ListViewsResponse = response.APIResponse[[]string]
type GetViewResponse = response.APIResponse[any]

// @Summary		List views
// @Tags			Views
// @Produce		json
// @Success		200	{object}	ListViewsResponse
// @Router			/views [get]
func (app *application) handleListViews(w http.ResponseWriter, r *http.Request) {
	response := &ListViewsResponse{Success: true, Data: app.engine.Views()}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Compute view
// @Description	Computes a metric view for the given filters. Each filter dimension is a query
// @Description	parameter with comma separated values (un, via_cobro, via_pago, tramo, gestion,
// @Description	venta, anio_venta, supervisor, gestor, culminacion, edad).
// @Tags			Views
// @Produce		json
// @Param			view	path		string					true	"View name"
// @Param			debug	query		bool					false	"Log the computation details"
// @Param			format	query		string					false	"report (default) or frame"
// @Param			X-Session-ID	header	string				false	"Client session; a newer request of the same session supersedes older ones"
// @Success		200		{object}	GetViewResponse
// @Failure		400		{object}	response.ErrorResponse	"Invalid filter selection"
// @Failure		404		{object}	response.ErrorResponse	"Unknown view"
// @Failure		409		{object}	response.ErrorResponse	"Superseded by a newer request"
// @Router			/views/{view} [get]
func (app *application) handleGetView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "view")
	q := r.URL.Query()

	sel, err := filter.FromQuery(q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := engine.WithSession(r.Context(), r.Header.Get(sessionHeader))
	report, err := app.engine.Compute(ctx, name, sel, parseBoolParam(r, "debug"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var data any = report
	if q.Get("format") == "frame" {
		frames, err := view.Render(name, report)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		data = frames
	}

	response := &GetViewResponse{Success: true, Data: data}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
