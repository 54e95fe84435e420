package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/response"
	"github.com/farxc/licitacoes_analytics/internal/store"
)

type RunAnalysisResponse = response.APIResponse[anomaly.Run]
type RiskScoreResponse = response.APIResponse[riskScore]

type runAnalysisRequest struct {
	BiddingID *int64 `json:"licitacao_id" validate:"omitempty,gt=0"`
}

type recurringSuppliersRequest struct {
	OrganizationID int64 `json:"orgao_id" validate:"required,gt=0"`
	PeriodDays     int   `json:"periodo_dias" validate:"omitempty,gte=1,lte=3650"`
}

type riskScore struct {
	BiddingID int64   `json:"licitacao_id"`
	Score     float64 `json:"score_risco"`
}

func (app *application) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AnomalyFilter{
		Type:   domain.AnomalyType(q.Get("tipo")),
		Status: q.Get("status"),
	}
	if v := q.Get("licitacao_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid licitacao_id %q", v))
			return
		}
		filter.BiddingID = &id
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	data, err := app.store.Anomalies.ListAnomalies(r.Context(), filter)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

// @Summary		Run anomaly analysis
// @Description	Applies the deadline, competition and price rules to one bidding, or to every bidding published in the lookback window.
// @Tags			Anomalies
// @Accept			json
// @Produce		json
// @Param			body	body		runAnalysisRequest	false	"Optional bidding"
// @Success		200		{object}	RunAnalysisResponse
// @Failure		404		{object}	response.ErrorResponse	"Unknown bidding"
// @Router			/anomalies/analysis [post]
func (app *application) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var input runAnalysisRequest
	if err := readJSON(w, r, &input); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := app.validate.Struct(input); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := app.anomalies.RunFullAnalysis(r.Context(), anomaly.Scope{BiddingID: input.BiddingID})
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, run, fmt.Sprintf("%d biddings analyzed, %d new anomalies", run.Biddings, len(run.Anomalies)))
}

func (app *application) handleRecurringSuppliers(w http.ResponseWriter, r *http.Request) {
	var input recurringSuppliersRequest
	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := app.validate.Struct(input); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := app.anomalies.DetectRecurringSupplier(r.Context(), input.OrganizationID, input.PeriodDays)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleGetRiskScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	score, err := app.anomalies.AggregateRiskScore(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, riskScore{BiddingID: id, Score: score}, "")
}
