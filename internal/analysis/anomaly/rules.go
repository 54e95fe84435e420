// Package anomaly flags irregular biddings. Rules in this file are pure;
// the detector feeds them with data from the store.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
)

const (
	// similar items are those whose description contains the first
	// similarPrefixLength characters of the item's description.
	similarPrefixLength = 50

	shortDeadlineDays     = 5
	veryShortDeadlineDays = 3

	lowCompetitionWinners = 3

	recurringMinWins      = 10
	recurringShareTrigger = 30.0
)

// PriceDeviation compares the item's estimated unit price with the mean of
// similar items. A nil mean or a missing price yields no anomaly.
func PriceDeviation(item domain.Item, similarMean *float64) *domain.Anomaly {
	if item.UnitEstimate == nil || *item.UnitEstimate == 0 {
		return nil
	}
	if similarMean == nil || *similarMean == 0 {
		return nil
	}
	value, mean := *item.UnitEstimate, *similarMean
	deviation := (value - mean) / mean * 100

	var (
		kind  domain.AnomalyType
		score float64
	)
	switch {
	case deviation > 100:
		kind, score = domain.AnomalyPriceExtreme, 90
	case deviation > 50:
		kind, score = domain.AnomalyPriceFarAbove, 70
	case deviation > 30:
		kind, score = domain.AnomalyPriceAboveAverage, 50
	default:
		return nil
	}

	return &domain.Anomaly{
		Type:             kind,
		BiddingID:        ptr(item.BiddingID),
		ItemID:           ptr(item.ID),
		Description:      kind.Label(),
		DetectedValue:    ptr(value),
		ReferenceValue:   ptr(mean),
		DeviationPercent: ptr(deviation),
		RiskScore:        ptr(score),
		Status:           domain.AnomalyStatusPending,
	}
}

// ShortDeadline flags biddings whose proposal opening comes less than five
// whole days after publication.
func ShortDeadline(b domain.Bidding) *domain.Anomaly {
	if b.PublishedAt == nil || b.ProposalOpeningAt == nil {
		return nil
	}
	days := wholeDays(b.ProposalOpeningAt.Sub(*b.PublishedAt))
	if days >= shortDeadlineDays {
		return nil
	}
	score := 50.0
	if days < veryShortDeadlineDays {
		score = 70
	}
	return &domain.Anomaly{
		Type:          domain.AnomalyShortDeadline,
		BiddingID:     ptr(b.ID),
		Description:   fmt.Sprintf("Prazo de apenas %d dias entre publicação e abertura", days),
		DetectedValue: ptr(float64(days)),
		RiskScore:     ptr(score),
		Status:        domain.AnomalyStatusPending,
	}
}

// LowCompetition flags biddings won by one or two distinct suppliers.
// Biddings without winners are not flagged.
func LowCompetition(biddingID int64, winners int) *domain.Anomaly {
	if winners <= 0 || winners >= lowCompetitionWinners {
		return nil
	}
	score := 40.0
	if winners == 1 {
		score = 60
	}
	return &domain.Anomaly{
		Type:          domain.AnomalyLowCompetition,
		BiddingID:     ptr(biddingID),
		Description:   fmt.Sprintf("Apenas %d fornecedor(es) participaram", winners),
		DetectedValue: ptr(float64(winners)),
		RiskScore:     ptr(score),
		Status:        domain.AnomalyStatusPending,
	}
}

// SupplierWins counts results won by one supplier for one organization.
type SupplierWins struct {
	SupplierID int64  `db:"fornecedor_id"`
	LegalName  string `db:"razao_social"`
	Wins       int    `db:"total_vitorias"`
}

// RecurringSupplier flags a supplier with more than ten wins holding more
// than 30% of the organization's biddings.
func RecurringSupplier(w SupplierWins, totalBiddings int) *domain.Anomaly {
	if w.Wins <= recurringMinWins || totalBiddings <= 0 {
		return nil
	}
	share := float64(w.Wins) / float64(totalBiddings) * 100
	if share <= recurringShareTrigger {
		return nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyRecurringSupplier,
		SupplierID: ptr(w.SupplierID),
		Description: fmt.Sprintf("Fornecedor %s venceu %d de %d licitações (%.1f%%)",
			w.LegalName, w.Wins, totalBiddings, share),
		DetectedValue:    ptr(float64(w.Wins)),
		ReferenceValue:   ptr(float64(totalBiddings)),
		DeviationPercent: ptr(share),
		RiskScore:        ptr(math.Min(share, 100)),
		Status:           domain.AnomalyStatusPending,
	}
}

// RiskScore averages the non-null scores, capped at 100. No scores give 0.
func RiskScore(scores []*float64) float64 {
	var (
		sum float64
		n   int
	)
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Min(sum/float64(n), 100)
}

// SimilarPrefix is the description fragment used to find similar items.
func SimilarPrefix(description string) string {
	r := []rune(description)
	if len(r) > similarPrefixLength {
		r = r[:similarPrefixLength]
	}
	return string(r)
}

// wholeDays floors d to whole days, rounding negative durations down.
func wholeDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

func ptr[T any](v T) *T {
	return &v
}
