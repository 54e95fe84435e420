package domain

import "time"

// AnomalyType enumerates the rules of the anomaly detector.
type AnomalyType string

const (
	AnomalyPriceAboveAverage AnomalyType = "PRECO_ACIMA_MEDIA"
	AnomalyPriceFarAbove     AnomalyType = "PRECO_MUITO_ACIMA"
	AnomalyPriceExtreme      AnomalyType = "PRECO_EXTREMO"
	AnomalyRecurringSupplier AnomalyType = "FORNECEDOR_RECORRENTE"
	AnomalyLowCompetition    AnomalyType = "BAIXA_COMPETICAO"
	AnomalyShortDeadline     AnomalyType = "PRAZO_CURTO"
)

var anomalyLabels = map[AnomalyType]string{
	AnomalyPriceAboveAverage: "Preço acima da média histórica",
	AnomalyPriceFarAbove:     "Preço muito acima da média (>50%)",
	AnomalyPriceExtreme:      "Preço extremamente alto (>100%)",
	AnomalyRecurringSupplier: "Mesmo fornecedor vencedor recorrente",
	AnomalyLowCompetition:    "Baixa competição (<3 participantes)",
	AnomalyShortDeadline:     "Prazo muito curto para propostas",
}

// Label returns the human readable name of the anomaly type.
func (t AnomalyType) Label() string {
	if l, ok := anomalyLabels[t]; ok {
		return l
	}
	return string(t)
}

const AnomalyStatusPending = "pendente"

// Anomaly represents the 'anomalias' table.
type Anomaly struct {
	ID               int64       `db:"id" json:"id"`
	Type             AnomalyType `db:"tipo" json:"tipo"`
	BiddingID        *int64      `db:"licitacao_id" json:"licitacao_id,omitempty"`
	ItemID           *int64      `db:"item_id" json:"item_id,omitempty"`
	SupplierID       *int64      `db:"fornecedor_id" json:"fornecedor_id,omitempty"`
	Description      string      `db:"descricao" json:"descricao"`
	DetectedValue    *float64    `db:"valor_detectado" json:"valor_detectado,omitempty"`
	ReferenceValue   *float64    `db:"valor_referencia" json:"valor_referencia,omitempty"`
	DeviationPercent *float64    `db:"percentual_desvio" json:"percentual_desvio,omitempty"`
	RiskScore        *float64    `db:"score_risco" json:"score_risco,omitempty"`
	Status           string      `db:"status" json:"status"`
	DetectedAt       time.Time   `db:"detectado_em" json:"detectado_em"`
}

// AnomalyKey is the natural key used to deduplicate anomaly records.
type AnomalyKey struct {
	BiddingID  int64
	ItemID     int64
	SupplierID int64
	Type       AnomalyType
}

// Key returns the natural key of the anomaly. Missing references map to 0.
func (a Anomaly) Key() AnomalyKey {
	k := AnomalyKey{Type: a.Type}
	if a.BiddingID != nil {
		k.BiddingID = *a.BiddingID
	}
	if a.ItemID != nil {
		k.ItemID = *a.ItemID
	}
	if a.SupplierID != nil {
		k.SupplierID = *a.SupplierID
	}
	return k
}
