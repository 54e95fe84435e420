package main

import (
	"net/http"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/go-chi/chi/v5"
)

type biddingScreening struct {
	BiddingID int64             `json:"licitacao_id"`
	Total     int               `json:"total_impedimentos"`
	Alerts    []sanctions.Alert `json:"alertas"`
}

type localSanctions struct {
	Document   string            `json:"cnpj"`
	Restricted bool              `json:"impedido"`
	Sanctions  []domain.Sanction `json:"impedimentos"`
}

func (app *application) handleCheckSanctions(w http.ResponseWriter, r *http.Request) {
	data, err := app.sanctions.Check(r.Context(), chi.URLParam(r, "document"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data, "")
}

func (app *application) handleLocalSanctions(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "document")
	active, err := app.sanctions.ActiveLocal(r.Context(), doc)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, localSanctions{
		Document:   domain.CleanDocument(doc),
		Restricted: len(active) > 0,
		Sanctions:  active,
	}, "")
}

func (app *application) handleScreenBidding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts, err := app.sanctions.ScreenBidding(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, biddingScreening{BiddingID: id, Total: len(alerts), Alerts: alerts}, "")
}
