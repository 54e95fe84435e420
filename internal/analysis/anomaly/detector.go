package anomaly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/google/uuid"
)

const component = "ANOMALY"

const (
	DefaultLookbackDays  = 30
	DefaultRecurringDays = 365
)

// Reader is the read side the detector needs from storage.
type Reader interface {
	GetOrganization(ctx context.Context, id int64) (domain.Organization, error)
	GetBidding(ctx context.Context, id int64) (domain.Bidding, error)
	ListBiddingsPublishedSince(ctx context.Context, since time.Time) ([]domain.Bidding, error)
	ListItems(ctx context.Context, biddingID int64) ([]domain.Item, error)
	// SimilarItemsMean returns the mean positive unit price of items whose
	// description contains prefix, excluding excludeItemID. nil when none.
	SimilarItemsMean(ctx context.Context, prefix string, excludeItemID int64) (*float64, error)
	CountDistinctWinners(ctx context.Context, biddingID int64) (int, error)
	ListSupplierWins(ctx context.Context, organizationID int64, since time.Time, minWins int) ([]SupplierWins, error)
	CountOrganizationBiddings(ctx context.Context, organizationID int64, since time.Time) (int, error)
	ListAnomalyScores(ctx context.Context, biddingID int64) ([]*float64, error)
	AnomalyExists(ctx context.Context, key domain.AnomalyKey) (bool, error)
}

// Sink persists detected anomalies. InsertAnomaly reports false when the
// record already existed under its natural key and nothing was written.
type Sink interface {
	InsertAnomaly(ctx context.Context, a *domain.Anomaly) (bool, error)
}

type Store interface {
	Reader
	Sink
}

// Scope selects the biddings of a run. A nil BiddingID means every bidding
// published in the lookback window.
type Scope struct {
	BiddingID *int64
}

// Run is the outcome of RunFullAnalysis. Anomalies holds only records
// created by this run.
type Run struct {
	ID        string           `json:"id"`
	Biddings  int              `json:"licitacoes_analisadas"`
	Anomalies []domain.Anomaly `json:"anomalias"`
}

type Options struct {
	LookbackDays int
	Now          func() time.Time
}

type Detector struct {
	store        Store
	log          *logger.Logger
	metrics      *metrics.Metrics
	lookbackDays int
	now          func() time.Time
}

func NewDetector(store Store, log *logger.Logger, m *metrics.Metrics, opts Options) *Detector {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Detector{
		store:        store,
		log:          log,
		metrics:      m,
		lookbackDays: opts.LookbackDays,
		now:          opts.Now,
	}
}

// RunFullAnalysis applies the deadline, competition and price rules to every
// bidding in scope and records anomalies not already stored under the same
// (bidding, item, type) key. Re-running over an unchanged scope records
// nothing.
func (d *Detector) RunFullAnalysis(ctx context.Context, scope Scope) (Run, error) {
	start := time.Now()
	defer d.metrics.ObserveAnalysis("anomaly", start)

	run := Run{ID: uuid.NewString(), Anomalies: []domain.Anomaly{}}

	biddings, err := d.scope(ctx, scope)
	if err != nil {
		return run, err
	}
	run.Biddings = len(biddings)
	d.log.Info(component, "Starting analysis: run=%s biddings=%d", run.ID, len(biddings))

	var candidates []*domain.Anomaly
	for _, b := range biddings {
		found, err := d.analyzeBidding(ctx, b)
		if err != nil {
			return run, err
		}
		candidates = append(candidates, found...)
	}

	detectedAt := d.now()
	seen := make(map[domain.AnomalyKey]bool)
	for _, a := range candidates {
		key := a.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		exists, err := d.store.AnomalyExists(ctx, key)
		if err != nil {
			return run, fmt.Errorf("failed to check anomaly: %w", err)
		}
		if exists {
			continue
		}
		a.DetectedAt = detectedAt
		inserted, err := d.record(ctx, a)
		if err != nil {
			return run, err
		}
		if inserted {
			run.Anomalies = append(run.Anomalies, *a)
		}
	}

	d.log.Info(component, "Analysis finished: run=%s candidates=%d new=%d", run.ID, len(candidates), len(run.Anomalies))
	return run, nil
}

func (d *Detector) scope(ctx context.Context, scope Scope) ([]domain.Bidding, error) {
	if scope.BiddingID != nil {
		b, err := d.store.GetBidding(ctx, *scope.BiddingID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, fmt.Errorf("bidding %d: %w", *scope.BiddingID, sentinel.ErrInvalidScope)
			}
			return nil, fmt.Errorf("failed to load bidding: %w", err)
		}
		return []domain.Bidding{b}, nil
	}

	since := d.now().AddDate(0, 0, -d.lookbackDays)
	biddings, err := d.store.ListBiddingsPublishedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent biddings: %w", err)
	}
	return biddings, nil
}

func (d *Detector) analyzeBidding(ctx context.Context, b domain.Bidding) ([]*domain.Anomaly, error) {
	var out []*domain.Anomaly

	if a := ShortDeadline(b); a != nil {
		out = append(out, a)
	}

	winners, err := d.store.CountDistinctWinners(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count winners: %w", err)
	}
	if a := LowCompetition(b.ID, winners); a != nil {
		out = append(out, a)
	}

	items, err := d.store.ListItems(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	for _, item := range items {
		if item.UnitEstimate == nil || *item.UnitEstimate == 0 {
			continue
		}
		mean, err := d.store.SimilarItemsMean(ctx, SimilarPrefix(item.Description), item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute similar items mean: %w", err)
		}
		if a := PriceDeviation(item, mean); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// DetectRecurringSupplier flags suppliers concentrating the organization's
// wins over the trailing periodDays. Suppliers already flagged are skipped.
func (d *Detector) DetectRecurringSupplier(ctx context.Context, organizationID int64, periodDays int) ([]domain.Anomaly, error) {
	if periodDays <= 0 {
		periodDays = DefaultRecurringDays
	}
	if _, err := d.store.GetOrganization(ctx, organizationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("organization %d: %w", organizationID, sentinel.ErrInvalidScope)
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	since := d.now().AddDate(0, 0, -periodDays)

	wins, err := d.store.ListSupplierWins(ctx, organizationID, since, recurringMinWins)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier wins: %w", err)
	}
	if len(wins) == 0 {
		return []domain.Anomaly{}, nil
	}
	total, err := d.store.CountOrganizationBiddings(ctx, organizationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count organization biddings: %w", err)
	}

	out := []domain.Anomaly{}
	for _, w := range wins {
		a := RecurringSupplier(w, total)
		if a == nil {
			continue
		}
		exists, err := d.store.AnomalyExists(ctx, a.Key())
		if err != nil {
			return nil, fmt.Errorf("failed to check anomaly: %w", err)
		}
		if exists {
			continue
		}
		a.DetectedAt = d.now()
		inserted, err := d.record(ctx, a)
		if err != nil {
			return nil, err
		}
		if inserted {
			out = append(out, *a)
		}
	}
	return out, nil
}

// record inserts a and counts it. A concurrent run may have stored the same
// key since the existence check; such records are not counted.
func (d *Detector) record(ctx context.Context, a *domain.Anomaly) (bool, error) {
	inserted, err := d.store.InsertAnomaly(ctx, a)
	if err != nil {
		return false, fmt.Errorf("failed to insert anomaly: %w", err)
	}
	if inserted {
		d.metrics.IncAnomaly(string(a.Type))
	}
	return inserted, nil
}

// AggregateRiskScore is the mean of the bidding's anomaly scores, capped at
// 100.
func (d *Detector) AggregateRiskScore(ctx context.Context, biddingID int64) (float64, error) {
	if _, err := d.store.GetBidding(ctx, biddingID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, fmt.Errorf("bidding %d: %w", biddingID, sentinel.ErrInvalidScope)
		}
		return 0, fmt.Errorf("failed to load bidding: %w", err)
	}
	scores, err := d.store.ListAnomalyScores(ctx, biddingID)
	if err != nil {
		return 0, fmt.Errorf("failed to list anomaly scores: %w", err)
	}
	return RiskScore(scores), nil
}
