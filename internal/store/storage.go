package store

import (
	"context"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type MunicipalityRepository interface {
	UpsertMunicipality(ctx context.Context, m *domain.Municipality) error
	GetMunicipality(ctx context.Context, id int64) (domain.Municipality, error)
	GetMunicipalityByIBGE(ctx context.Context, code string) (domain.Municipality, error)
	ListMunicipalities(ctx context.Context) ([]domain.Municipality, error)
}

type OrganizationRepository interface {
	GetOrCreateOrganization(ctx context.Context, o *domain.Organization) error
	GetOrganization(ctx context.Context, id int64) (domain.Organization, error)
}

type BiddingRepository interface {
	UpsertBidding(ctx context.Context, b *domain.Bidding) error
	GetBidding(ctx context.Context, id int64) (domain.Bidding, error)
	ListBiddingsPublishedSince(ctx context.Context, since time.Time) ([]domain.Bidding, error)
	ListMunicipalityBiddings(ctx context.Context, municipalityID int64) ([]domain.Bidding, error)
	CountOrganizationBiddings(ctx context.Context, organizationID int64, since time.Time) (int, error)
}

type ItemRepository interface {
	UpsertItem(ctx context.Context, item *domain.Item) error
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	ListItems(ctx context.Context, biddingID int64) ([]domain.Item, error)
	SimilarItemsMean(ctx context.Context, prefix string, excludeItemID int64) (*float64, error)
	FetchPriceHistory(ctx context.Context, q prices.HistoryQuery) ([]domain.PricePoint, error)
}

type SupplierRepository interface {
	UpsertSupplier(ctx context.Context, s *domain.Supplier) error
	ListBiddingSuppliers(ctx context.Context, biddingID int64) ([]domain.Supplier, error)
}

type ResultRepository interface {
	UpsertResult(ctx context.Context, r *domain.Result) error
	CountDistinctWinners(ctx context.Context, biddingID int64) (int, error)
	ListSupplierWins(ctx context.Context, organizationID int64, since time.Time, minWins int) ([]anomaly.SupplierWins, error)
	SupplierHomologatedTotals(ctx context.Context, municipalityID int64) ([]float64, error)
	CountWins(ctx context.Context, municipalityID int64) (governance.WinCounts, error)
}

type AnomalyRepository interface {
	InsertAnomaly(ctx context.Context, a *domain.Anomaly) (bool, error)
	AnomalyExists(ctx context.Context, key domain.AnomalyKey) (bool, error)
	ListAnomalyScores(ctx context.Context, biddingID int64) ([]*float64, error)
	ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]domain.Anomaly, error)
}

type GovernanceRepository interface {
	UpsertGovernance(ctx context.Context, rec *domain.GovernanceRecord) error
	ListGovernance(ctx context.Context, municipalityID int64) ([]domain.GovernanceRecord, error)
}

type SanctionRepository interface {
	UpsertSanction(ctx context.Context, s *domain.Sanction) error
	ListSanctions(ctx context.Context, document string) ([]domain.Sanction, error)
}

type IngestionHistoryRepository interface {
	InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error
	GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error)
	UpdateIngestionStatus(ctx context.Context, id int64, status string, processed []string) error
}

type Storage struct {
	Municipalities   MunicipalityRepository
	Organizations    OrganizationRepository
	Biddings         BiddingRepository
	Items            ItemRepository
	Suppliers        SupplierRepository
	Results          ResultRepository
	Anomalies        AnomalyRepository
	Governance       GovernanceRepository
	Sanctions        SanctionRepository
	IngestionHistory IngestionHistoryRepository
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Municipalities:   &MunicipalityStore{db: db},
		Organizations:    &OrganizationStore{db: db},
		Biddings:         &BiddingStore{db: db},
		Items:            &ItemStore{db: db},
		Suppliers:        &SupplierStore{db: db},
		Results:          &ResultStore{db: db},
		Anomalies:        &AnomalyStore{db: db},
		Governance:       &GovernanceStore{db: db},
		Sanctions:        &SanctionStore{db: db},
		IngestionHistory: &IngestionHistoryStore{db: db},
	}
}

type anomalySource struct {
	OrganizationRepository
	BiddingRepository
	ItemRepository
	ResultRepository
	AnomalyRepository
}

// AnomalySource returns the view of the storage used by the anomaly detector.
func (s *Storage) AnomalySource() anomaly.Store {
	return anomalySource{s.Organizations, s.Biddings, s.Items, s.Results, s.Anomalies}
}

type governanceSource struct {
	MunicipalityRepository
	BiddingRepository
	ResultRepository
	GovernanceRepository
}

// GovernanceSource returns the view of the storage used by the scorer.
func (s *Storage) GovernanceSource() governance.Store {
	return governanceSource{s.Municipalities, s.Biddings, s.Results, s.Governance}
}

// PriceHistory returns the view of the storage used by the price engine.
func (s *Storage) PriceHistory() prices.HistoryReader {
	return s.Items
}
