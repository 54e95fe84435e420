package sanctions

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"golang.org/x/sync/errgroup"
)

// Lookuper is the remote registry side used by the service.
type Lookuper interface {
	Lookup(ctx context.Context, registry, document string) ([]Record, error)
}

// Detail is one registry hit of a check.
type Detail struct {
	Source  string   `json:"fonte"`
	Records []Record `json:"registros"`
}

// Check is the outcome of querying both registries for a document.
type Check struct {
	Document   string   `json:"cnpj"`
	Restricted bool     `json:"impedido"`
	CEIS       []Record `json:"ceis"`
	CNEP       []Record `json:"cnep"`
	Details    []Detail `json:"detalhes"`
}

// Alert flags a bidding supplier with sanctions in force.
type Alert struct {
	SupplierID int64             `json:"fornecedor_id"`
	Document   string            `json:"cnpj"`
	Name       string            `json:"razao_social"`
	Sanctions  []domain.Sanction `json:"impedimentos"`
}

type Service struct {
	remote  Lookuper
	storage *store.Storage
	cache   *cache.Cache
	log     *logger.Logger
	now     func() time.Time
}

func NewService(remote Lookuper, storage *store.Storage, c *cache.Cache, log *logger.Logger) *Service {
	return &Service{remote: remote, storage: storage, cache: c, log: log, now: time.Now}
}

func validDocument(doc string) bool {
	return len(doc) == 11 || len(doc) == 14
}

func (s *Service) lookup(ctx context.Context, registry, document string) ([]Record, error) {
	key := fmt.Sprintf("sanctions:%s:%s", registry, document)
	return cache.GetOrLoad(ctx, s.cache, key, cache.TTLLong, func(ctx context.Context) ([]Record, error) {
		return s.remote.Lookup(ctx, registry, document)
	})
}

// Check queries CEIS and CNEP in parallel. Records found are kept in the
// local table so later screenings can skip the remote call.
func (s *Service) Check(ctx context.Context, document string) (Check, error) {
	doc := domain.CleanDocument(document)
	if !validDocument(doc) {
		return Check{}, fmt.Errorf("%w: %q", sentinel.ErrInvalidDocument, document)
	}

	out := Check{Document: doc, Details: []Detail{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.CEIS, err = s.lookup(gctx, domain.SourceCEIS, doc)
		return err
	})
	g.Go(func() error {
		var err error
		out.CNEP, err = s.lookup(gctx, domain.SourceCNEP, doc)
		return err
	})
	if err := g.Wait(); err != nil {
		return Check{}, fmt.Errorf("failed to check sanctions of %s: %w", doc, err)
	}

	for _, d := range []Detail{{domain.SourceCEIS, out.CEIS}, {domain.SourceCNEP, out.CNEP}} {
		if len(d.Records) == 0 {
			continue
		}
		out.Restricted = true
		out.Details = append(out.Details, d)
		s.save(ctx, d.Source, doc, d.Records)
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, registry, doc string, records []Record) {
	for _, r := range records {
		row := r.ToSanction(registry, doc)
		if err := s.storage.Sanctions.UpsertSanction(ctx, &row); err != nil {
			s.log.Warn(component, "Failed to keep sanction locally: document=%s registry=%s err=%v", doc, registry, err)
		}
	}
}

// ActiveLocal returns the sanctions of the local table still in force today.
func (s *Service) ActiveLocal(ctx context.Context, document string) ([]domain.Sanction, error) {
	doc := domain.CleanDocument(document)
	if !validDocument(doc) {
		return nil, fmt.Errorf("%w: %q", sentinel.ErrInvalidDocument, document)
	}
	all, err := s.storage.Sanctions.ListSanctions(ctx, doc)
	if err != nil {
		return nil, err
	}
	return activeAt(all, s.now()), nil
}

func activeAt(all []domain.Sanction, at time.Time) []domain.Sanction {
	out := make([]domain.Sanction, 0, len(all))
	for _, sn := range all {
		if sn.Active(at) {
			out = append(out, sn)
		}
	}
	return out
}

// ScreenBidding checks every winning supplier of the bidding. Suppliers with
// no local record are checked remotely; those with local records are judged
// on the records still in force.
func (s *Service) ScreenBidding(ctx context.Context, biddingID int64) ([]Alert, error) {
	suppliers, err := s.storage.Suppliers.ListBiddingSuppliers(ctx, biddingID)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	for _, sup := range suppliers {
		local, err := s.storage.Sanctions.ListSanctions(ctx, sup.Document)
		if err != nil {
			return nil, err
		}

		if len(local) == 0 {
			if !validDocument(sup.Document) {
				continue
			}
			if _, err := s.Check(ctx, sup.Document); err != nil {
				return nil, err
			}
			if local, err = s.storage.Sanctions.ListSanctions(ctx, sup.Document); err != nil {
				return nil, err
			}
		}

		active := activeAt(local, s.now())
		if len(active) == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			SupplierID: sup.ID,
			Document:   sup.Document,
			Name:       sup.LegalName,
			Sanctions:  active,
		})
	}

	s.log.Info(component, "Bidding screened: bidding=%d suppliers=%d alerts=%d", biddingID, len(suppliers), len(alerts))
	return alerts, nil
}
