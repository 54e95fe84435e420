package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/stats"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
)

const component = "PRICES"

const (
	DefaultWindowMonths = 24
	DefaultTrendMonths  = 12
	// descriptions of compared items are cut to this many characters
	// before being used as the search key.
	comparisonKeyLength = 100
)

// HistoryQuery selects positive unit prices whose item description contains
// Description, published on or after Since.
type HistoryQuery struct {
	Description    string
	Since          time.Time
	MunicipalityID *int64
}

// HistoryReader is the storage side of the price engine. Points must come
// back ordered by publication date.
type HistoryReader interface {
	FetchPriceHistory(ctx context.Context, q HistoryQuery) ([]domain.PricePoint, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
}

type Options struct {
	WindowMonths int
	TrendMonths  int
	Now          func() time.Time
}

type Service struct {
	history      HistoryReader
	log          *logger.Logger
	windowMonths int
	trendMonths  int
	now          func() time.Time
}

func NewService(history HistoryReader, log *logger.Logger, opts Options) *Service {
	if opts.WindowMonths <= 0 {
		opts.WindowMonths = DefaultWindowMonths
	}
	if opts.TrendMonths <= 0 {
		opts.TrendMonths = DefaultTrendMonths
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		history:      history,
		log:          log,
		windowMonths: opts.WindowMonths,
		trendMonths:  opts.TrendMonths,
		now:          opts.Now,
	}
}

// ItemStatistics is the result of ComputeItemStatistics. Stats is nil when
// no history matched.
type ItemStatistics struct {
	Description string      `json:"descricao"`
	Months      int         `json:"periodo_meses"`
	Count       int         `json:"total_registros"`
	Stats       *PriceStats `json:"estatisticas"`
}

func (s *Service) ComputeItemStatistics(ctx context.Context, description string, months int) (ItemStatistics, error) {
	months = s.months(months, s.windowMonths)
	window, err := s.window(ctx, description, months, nil)
	if err != nil && !noData(err) {
		return ItemStatistics{}, err
	}
	return ItemStatistics{
		Description: description,
		Months:      months,
		Count:       len(window),
		Stats:       Summarize(window),
	}, nil
}

// ItemComparison is the result of CompareToHistory. Comparison is nil when
// the item has no unit price or no history matched.
type ItemComparison struct {
	ItemID     int64       `json:"item_id"`
	Value      *float64    `json:"valor_item,omitempty"`
	History    *PriceStats `json:"estatisticas_historico,omitempty"`
	Comparison *Comparison `json:"comparacao"`
}

func (s *Service) CompareToHistory(ctx context.Context, itemID int64) (ItemComparison, error) {
	item, err := s.history.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ItemComparison{}, fmt.Errorf("item %d: %w", itemID, sentinel.ErrInvalidScope)
		}
		return ItemComparison{}, fmt.Errorf("failed to load item: %w", err)
	}

	out := ItemComparison{ItemID: itemID}
	if item.UnitEstimate == nil || *item.UnitEstimate == 0 {
		return out, nil
	}
	value := *item.UnitEstimate
	out.Value = &value

	window, err := s.window(ctx, truncate(item.Description, comparisonKeyLength), s.windowMonths, nil)
	if noData(err) {
		s.log.Debug(component, "No history for comparison: item_id=%d", itemID)
		return out, nil
	}
	if err != nil {
		return ItemComparison{}, err
	}
	summary := Summarize(window)
	cmp := Compare(value, *summary, len(window))
	out.History = summary
	out.Comparison = &cmp
	return out, nil
}

type RegionalBenchmark struct {
	Description string              `json:"descricao"`
	OverallMean float64             `json:"media_geral"`
	Rows        []MunicipalityPrice `json:"benchmark"`
}

func (s *Service) RegionalBenchmark(ctx context.Context, description string) (RegionalBenchmark, error) {
	window, err := s.window(ctx, description, s.windowMonths, nil)
	if err != nil && !noData(err) {
		return RegionalBenchmark{}, err
	}
	overall, rows := Benchmark(window)
	return RegionalBenchmark{Description: description, OverallMean: overall, Rows: rows}, nil
}

func (s *Service) DetectOutliers(ctx context.Context, description string) ([]Outlier, error) {
	window, err := s.window(ctx, description, s.windowMonths, nil)
	if err != nil && !noData(err) {
		return nil, err
	}
	return Outliers(window), nil
}

// ReferencePrice is the result of SuggestReferencePrice. Suggested is nil
// when no history matched.
type ReferencePrice struct {
	Description string      `json:"descricao"`
	Suggested   *float64    `json:"preco_sugerido"`
	Interval    *Interval   `json:"intervalo_confianca,omitempty"`
	Stats       *PriceStats `json:"estatisticas,omitempty"`
	Count       int         `json:"total_registros"`
}

func (s *Service) SuggestReferencePrice(ctx context.Context, description string) (ReferencePrice, error) {
	window, err := s.window(ctx, description, s.windowMonths, nil)
	if noData(err) {
		return ReferencePrice{Description: description}, nil
	}
	if err != nil {
		return ReferencePrice{}, err
	}
	out := ReferencePrice{Description: description, Count: len(window)}
	summary := Summarize(window)
	price, interval := Reference(*summary)
	out.Suggested = &price
	out.Interval = &interval
	out.Stats = summary
	return out, nil
}

// TrendAnalysis is the result of AnalyzeTrend. Trend is nil with fewer than
// two observations.
type TrendAnalysis struct {
	Description string       `json:"descricao"`
	Months      int          `json:"periodo_meses"`
	Count       int          `json:"total_registros"`
	Trend       *stats.Trend `json:"tendencia"`
}

func (s *Service) AnalyzeTrend(ctx context.Context, description string, months int) (TrendAnalysis, error) {
	months = s.months(months, s.trendMonths)
	window, err := s.window(ctx, description, months, nil)
	if err != nil && !noData(err) {
		return TrendAnalysis{}, err
	}
	return TrendAnalysis{
		Description: description,
		Months:      months,
		Count:       len(window),
		Trend:       Trend(window),
	}, nil
}

func (s *Service) Timeline(ctx context.Context, description string, months int, municipalityID *int64) ([]TimelinePoint, error) {
	months = s.months(months, s.trendMonths)
	window, err := s.window(ctx, description, months, municipalityID)
	if err != nil && !noData(err) {
		return nil, err
	}
	return Timeline(window), nil
}

// window months are approximated as 30 days. An empty window is reported
// as sentinel.ErrNoHistoricalData.
func (s *Service) window(ctx context.Context, description string, months int, municipalityID *int64) ([]domain.PricePoint, error) {
	since := s.now().AddDate(0, 0, -30*months)
	points, err := s.history.FetchPriceHistory(ctx, HistoryQuery{
		Description:    description,
		Since:          since,
		MunicipalityID: municipalityID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	if len(points) == 0 {
		return nil, sentinel.ErrNoHistoricalData
	}
	return points, nil
}

func noData(err error) bool {
	return errors.Is(err, sentinel.ErrNoHistoricalData)
}

func (s *Service) months(requested, fallback int) int {
	if requested <= 0 {
		return fallback
	}
	return requested
}
