package pncp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Page is one page of /contratacoes/publicacao.
type Page struct {
	Data             []Contract `json:"data"`
	TotalRecords     int        `json:"totalRegistros"`
	TotalPages       int        `json:"totalPaginas"`
	PageNumber       int        `json:"numeroPagina"`
	RemainingPages   int        `json:"paginasRestantes"`
	Empty            bool       `json:"empty"`
	HasNextIndicator bool       `json:"hasNext"`
}

// HasNext reports whether another page follows.
func (p Page) HasNext() bool {
	return p.HasNextIndicator || p.RemainingPages > 0
}

type Entity struct {
	CNPJ      string `json:"cnpj"`
	LegalName string `json:"razaoSocial"`
	PowerID   Text   `json:"poderId"`
	SphereID  Text   `json:"esferaId"`
}

type Unit struct {
	Code     Text   `json:"codigoUnidade"`
	Name     string `json:"nomeUnidade"`
	IBGECode Text   `json:"codigoIbge"`
	UF       string `json:"ufSigla"`
	City     string `json:"municipioNome"`
}

type LegalBasis struct {
	Code        *int   `json:"codigo"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

// Contract is a purchase ("contratação") as published by PNCP.
type Contract struct {
	PurchaseSequence  Text       `json:"sequencialCompra"`
	PurchaseNumber    Text       `json:"numeroCompra"`
	Process           Text       `json:"processo"`
	PurchaseYear      *int       `json:"anoCompra"`
	ControlNumber     string     `json:"numeroControlePNCP"`
	Organization      Entity     `json:"orgaoEntidade"`
	Unit              Unit       `json:"unidadeOrgao"`
	ModalityID        *int       `json:"modalidadeId"`
	ModalityName      string     `json:"modalidadeNome"`
	LegalBasis        LegalBasis `json:"amparoLegal"`
	Object            string     `json:"objetoCompra"`
	PublishedAt       *Timestamp `json:"dataPublicacaoPncp"`
	ProposalOpeningAt *Timestamp `json:"dataAberturaProposta"`
	ProposalClosingAt *Timestamp `json:"dataEncerramentoProposta"`
	UpdatedAt         *Timestamp `json:"dataAtualizacao"`
	StatusID          *int       `json:"situacaoCompraId"`
	StatusName        string     `json:"situacaoCompraNome"`
	EstimatedTotal    *float64   `json:"valorTotalEstimado"`
	HomologatedTotal  *float64   `json:"valorTotalHomologado"`
	OriginSystemLink  string     `json:"linkSistemaOrigem"`
	HasResult         bool       `json:"existeResultado"`
}

// Item is an item of a purchase.
type Item struct {
	Number            int      `json:"numeroItem"`
	MaterialOrService string   `json:"materialOuServico"`
	Description       string   `json:"descricao"`
	Quantity          *float64 `json:"quantidade"`
	UnitOfMeasure     string   `json:"unidadeMedida"`
	UnitEstimate      *float64 `json:"valorUnitarioEstimado"`
	Total             *float64 `json:"valorTotal"`
	HasResult         bool     `json:"temResultado"`
}

// Result is a supplier result of an item.
type Result struct {
	ResultDate          *Timestamp `json:"dataResultado"`
	Sequence            *int       `json:"sequencialResultado"`
	SupplierDocument    string     `json:"niFornecedor"`
	SupplierName        string     `json:"nomeRazaoSocialFornecedor"`
	PersonType          string     `json:"tipoPessoa"`
	SupplierSizeName    string     `json:"porteFornecedorNome"`
	DiscountPercent     *float64   `json:"percentualDesconto"`
	HomologatedQuantity *float64   `json:"quantidadeHomologada"`
	HomologatedUnit     *float64   `json:"valorUnitarioHomologado"`
	HomologatedTotal    *float64   `json:"valorTotalHomologado"`
}

// Text accepts JSON strings and numbers. PNCP is not consistent about
// identifiers such as sequencialCompra.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("invalid text value %s", b)
	}
	*t = Text(b)
	return nil
}

// Ptr returns nil for the empty value.
func (t Text) Ptr() *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Timestamp parses the date formats seen in PNCP payloads. Values without a
// zone are taken as UTC.
type Timestamp struct {
	time.Time
}

func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	ts.Time = t
	return nil
}

// TimePtr returns nil for a missing or zero timestamp.
func (ts *Timestamp) TimePtr() *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

// decodeList accepts either a bare JSON array or an object with a data field.
func decodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var out []T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}
