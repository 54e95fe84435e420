package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/go-chi/chi/v5"
)

// priceQuery holds the query parameters shared by the price routes.
type priceQuery struct {
	Description    string `validate:"required,min=3,max=200"`
	Months         int    `validate:"gte=0,lte=120"`
	MunicipalityID *int64 `validate:"omitempty,gt=0"`
}

func (app *application) readPriceQuery(r *http.Request) (priceQuery, error) {
	q := r.URL.Query()
	out := priceQuery{Description: strings.TrimSpace(q.Get("descricao"))}

	var err error
	if out.Months, err = queryInt(r, "meses", 0); err != nil {
		return out, err
	}
	if v := q.Get("municipio_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return out, fmt.Errorf("invalid municipio_id %q", v)
		}
		out.MunicipalityID = &id
	}
	return out, app.validate.Struct(out)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}

// queryPeriod reads the optional periodo parameter.
func queryPeriod(r *http.Request) (*governance.Period, error) {
	v := r.URL.Query().Get("periodo")
	if v == "" {
		return nil, nil
	}
	p, err := governance.ParsePeriod(v)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
