package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/response"
)

type PriceStatisticsResponse = response.APIResponse[prices.ItemStatistics]

// @Summary		Price statistics
// @Description	Descriptive statistics of the unit prices of items matching a description.
// @Tags			Prices
// @Produce		json
// @Param			descricao	query		string	true	"Item description"
// @Param			meses		query		int		false	"Window in months"	default(24)
// @Success		200			{object}	PriceStatisticsResponse
// @Failure		400			{object}	response.ErrorResponse
// @Router			/prices/statistics [get]
func (app *application) handleGetPriceStatistics(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	months := q.Months
	if months == 0 {
		months = app.config.Analysis.PriceWindowMonths
	}
	key := cache.PriceStatisticsKey(q.Description, months)
	data, err := cache.GetOrLoad(r.Context(), app.cache, key, cache.TTLShort, func(ctx context.Context) (prices.ItemStatistics, error) {
		return app.prices.ComputeItemStatistics(ctx, q.Description, months)
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetItemComparison(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.CompareToHistory(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetRegionalBenchmark(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.RegionalBenchmark(r.Context(), q.Description)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetOutliers(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.DetectOutliers(r.Context(), q.Description)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, fmt.Sprintf("%d outliers found", len(data)))
}

func (app *application) handleGetReferencePrice(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.SuggestReferencePrice(r.Context(), q.Description)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetTrend(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.AnalyzeTrend(r.Context(), q.Description, q.Months)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	q, err := app.readPriceQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.prices.Timeline(r.Context(), q.Description, q.Months, q.MunicipalityID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}
