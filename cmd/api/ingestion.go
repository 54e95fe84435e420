package main

import (
	"net/http"

	"github.com/farxc/licitacoes_analytics/internal/response"
	"github.com/farxc/licitacoes_analytics/internal/store"
)

type GetIngestionHistoryResponse = response.APIResponse[[]store.IngestionHistory]

// @Summary		Get ingestion history
// @Description	Get a list of the latest collection and import runs.
// @Tags			Ingestion
// @Produce		json
// @Param			limit	query		int							false	"Limit the number of results"	default(10)
// @Success		200		{object}	GetIngestionHistoryResponse	"Successfully retrieved latest ingestion records"
// @Failure		500		{object}	response.ErrorResponse		"Failed to get ingestion history"
// @Router			/ingestion/history [get]
func (app *application) handleGetIngestionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit <= 0 {
		limit = 10
	}

	data, err := app.store.IngestionHistory.GetLatest(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get ingestion history: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, data, "Successfully retrieved latest ingestion records")
}
