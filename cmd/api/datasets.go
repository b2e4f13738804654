package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/persist"
	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/response"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

type ListDatasetsResponse = response.APIResponse[[]dataset.Info]

type UploadResult struct {
	Dataset dataset.Info   `json:"dataset"`
	Report  *ingest.Report `json:"report"`
}

type UploadDatasetResponse = response.APIResponse[UploadResult]
type SyncDatasetsResponse = response.APIResponse[pipeline.Summary]
type SaveDatasetsResponse = response.APIResponse[persist.Outcome]

// @Summary		List datasets
// @Description	Row counts and stamps of the loaded datasets.
// @Tags			Datasets
// @Produce		json
// @Success		200	{object}	ListDatasetsResponse
// @Router			/datasets [get]
func (app *application) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	response := &ListDatasetsResponse{
		Success: true,
		Data:    app.datasets.List(),
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Upload dataset
// @Description	Replaces one dataset with the uploaded CSV or XLSX file (multipart field "file").
// @Tags			Datasets
// @Accept			multipart/form-data
// @Produce		json
// @Param			kind	path		string					true	"cartera, cobranzas, contratos or gestores"
// @Success		201		{object}	UploadDatasetResponse	"Dataset replaced"
// @Failure		400		{object}	response.ErrorResponse	"Unknown dataset or missing file"
// @Failure		422		{object}	response.ErrorResponse	"File failed validation"
// @Router			/datasets/{kind} [post]
func (app *application) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	kind, ok := types.ParseDatasetKind(chi.URLParam(r, "kind"))
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown dataset: "+chi.URLParam(r, "kind"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file: "+err.Error())
		return
	}
	defer file.Close()

	info, report, err := app.orchestrator.IngestReader(r.Context(), kind, header.Filename, file, store.TriggerTypeUpload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response := &UploadDatasetResponse{
		Success: true,
		Data:    UploadResult{Dataset: info, Report: report},
		Message: "Dataset replaced",
	}
	if err := writeJSON(w, http.StatusCreated, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Sync datasets
// @Description	Loads the changed feed files of the configured sync directory.
// @Tags			Datasets
// @Produce		json
// @Success		200	{object}	SyncDatasetsResponse
// @Failure		400	{object}	response.ErrorResponse	"No sync directory configured"
// @Router			/datasets/sync [post]
func (app *application) handleSyncDatasets(w http.ResponseWriter, r *http.Request) {
	if app.config.Sync.Dir == "" {
		writeJSONError(w, http.StatusBadRequest, "no sync directory configured")
		return
	}
	summary, err := app.orchestrator.SyncDir(r.Context(), app.config.Sync.Dir, store.TriggerTypeManual)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to sync: "+err.Error())
		return
	}
	response := &SyncDatasetsResponse{Success: len(summary.Failed) == 0, Data: summary}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Save datasets
// @Description	Writes the loaded datasets to the snapshot store. Oversized datasets are skipped.
// @Tags			Datasets
// @Produce		json
// @Success		200	{object}	SaveDatasetsResponse
// @Router			/datasets/save [post]
func (app *application) handleSaveDatasets(w http.ResponseWriter, r *http.Request) {
	outcome := app.persister.Save(r.Context(), app.datasets.Current())
	response := &SaveDatasetsResponse{Success: true, Data: outcome}
	if len(outcome.Skipped) > 0 {
		response.Message = "Some datasets were not saved"
	}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Restore datasets
// @Description	Replaces the loaded datasets with the saved snapshots that exist.
// @Tags			Datasets
// @Produce		json
// @Success		200	{object}	ListDatasetsResponse
// @Failure		500	{object}	response.ErrorResponse
// @Router			/datasets/restore [post]
func (app *application) handleRestoreDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := app.restore(r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to restore: "+err.Error())
		return
	}
	response := &ListDatasetsResponse{Success: true, Data: infos}
	if err := writeJSON(w, http.StatusOK, response); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

func (app *application) restore(r *http.Request) ([]dataset.Info, error) {
	return restoreDatasets(r.Context(), app.persister, app.orchestrator)
}
