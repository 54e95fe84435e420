// Package governance scores municipalities on the transparency, efficiency
// and competitiveness of their procurement.
package governance

import (
	"math"

	"github.com/farxc/licitacoes_analytics/internal/analysis/stats"
	"github.com/farxc/licitacoes_analytics/internal/domain"
)

// KPIs is the indicator set of one municipality.
type KPIs struct {
	TransparencyIndex float64 `json:"indice_transparencia"`
	SuccessRate       float64 `json:"taxa_sucesso"`
	AverageCycleDays  int     `json:"tempo_medio_dias"`
	HHI               float64 `json:"indice_hhi"`
	MEEPPShare        float64 `json:"participacao_meepp"`
	AverageSavings    float64 `json:"economia_media"`
}

// WinCounts counts winning results, in total and by ME/EPP suppliers.
type WinCounts struct {
	Total int `db:"total"`
	MEEPP int `db:"me_epp"`
}

const essentialFields = 7

// TransparencyIndex is the share of essential fields filled across all
// biddings, 0-100.
func TransparencyIndex(biddings []domain.Bidding) float64 {
	if len(biddings) == 0 {
		return 0
	}
	filled := 0
	for _, b := range biddings {
		filled += filledFields(b)
	}
	return float64(filled) / float64(len(biddings)*essentialFields) * 100
}

func filledFields(b domain.Bidding) int {
	n := 0
	for _, ok := range []bool{
		present(b.Object),
		b.EstimatedTotal != nil && *b.EstimatedTotal != 0,
		b.PublishedAt != nil,
		b.ProposalOpeningAt != nil,
		present(b.ModalityName),
		present(b.LegalBasisName),
		present(b.OriginSystemLink),
	} {
		if ok {
			n++
		}
	}
	return n
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// SuccessRate is the percentage of biddings with a result. A non-nil period
// restricts the biddings to those published within it.
func SuccessRate(biddings []domain.Bidding, period *Period) float64 {
	total, withResult := 0, 0
	for _, b := range biddings {
		if period != nil && (b.PublishedAt == nil || !period.Contains(*b.PublishedAt)) {
			continue
		}
		total++
		if b.HasResult {
			withResult++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(withResult) / float64(total) * 100
}

// AverageCycleDays averages the whole days between publication and last
// update over biddings with a result and a positive gap. The last update
// stands in for the homologation date.
func AverageCycleDays(biddings []domain.Bidding) int {
	total, count := 0, 0
	for _, b := range biddings {
		if !b.HasResult || b.PublishedAt == nil || b.LastUpdatedAt == nil {
			continue
		}
		days := int(math.Floor(b.LastUpdatedAt.Sub(*b.PublishedAt).Hours() / 24))
		if days > 0 {
			total += days
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / count
}

// ConcentrationHHI applies the HHI to per-supplier homologated totals.
func ConcentrationHHI(supplierTotals []float64) float64 {
	return stats.HHI(supplierTotals)
}

// MEEPPShare is the percentage of wins by micro and small enterprises.
func MEEPPShare(w WinCounts) float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.MEEPP) / float64(w.Total) * 100
}

// AverageSavings averages (estimated - homologated) / estimated over
// biddings with both values and a positive estimate. The result is signed.
func AverageSavings(biddings []domain.Bidding) float64 {
	var sum float64
	n := 0
	for _, b := range biddings {
		if b.EstimatedTotal == nil || b.HomologatedTotal == nil || *b.EstimatedTotal <= 0 {
			continue
		}
		est := *b.EstimatedTotal
		sum += (est - *b.HomologatedTotal) / est * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CompositeScore weighs the indicators into a 0-100 governance score,
// rounded to two decimals.
func CompositeScore(k KPIs) float64 {
	hhiScore := math.Max(0, 100-k.HHI/100)
	savings := math.Max(0, math.Min(100, k.AverageSavings))
	score := k.TransparencyIndex*0.30 +
		k.SuccessRate*0.25 +
		hhiScore*0.20 +
		k.MEEPPShare*0.15 +
		savings*0.10
	return stats.Round(score)
}
