package main

import (
	"context"
	"net/http"

	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/response"
	"github.com/go-chi/chi/v5"
)

type RankingResponse = response.APIResponse[[]governance.RankingEntry]

func (app *application) handleGetKPIs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := queryPeriod(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	data, err := app.governance.ComputeGovernanceKPIs(r.Context(), id, period)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := queryPeriod(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	data, err := app.governance.Report(r.Context(), id, period)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

// @Summary		Governance ranking
// @Description	Municipalities ordered by composite governance score.
// @Tags			Governance
// @Produce		json
// @Success		200	{object}	RankingResponse
// @Router			/governance/ranking [get]
func (app *application) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	data, err := cache.GetOrLoad(r.Context(), app.cache, cache.KeyGovernanceRanking, cache.TTLMedium, func(ctx context.Context) ([]governance.RankingEntry, error) {
		return app.governance.RankMunicipalities(ctx)
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetGovernanceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := app.store.Governance.ListGovernance(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleUpsertPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := governance.ParsePeriod(chi.URLParam(r, "periodo"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	rec, err := app.governance.UpsertGovernancePeriod(r.Context(), id, &period)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.cache.Delete(r.Context(), cache.KeyGovernanceRanking)
	writeData(w, http.StatusOK, rec, "Governance period updated")
}
