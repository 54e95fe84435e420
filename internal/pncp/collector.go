package pncp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/google/uuid"
)

// Source is the read side of the PNCP API used by the collector.
type Source interface {
	FetchAllContracts(ctx context.Context, q ContractsQuery) ([]Contract, error)
	FetchItems(ctx context.Context, cnpj string, year int, sequence string) ([]Item, error)
	FetchResults(ctx context.Context, cnpj string, year int, sequence string, itemNumber int) ([]Result, error)
}

// Job collects the publications of one municipality.
type Job struct {
	Municipality domain.Municipality
	Start        time.Time
	End          time.Time
	Attempt      int
}

type JobResult struct {
	Job   Job
	Stats Stats
	Error error
}

type Stats struct {
	Biddings int `json:"licitacoes"`
	Items    int `json:"itens"`
	Results  int `json:"resultados"`
	Skipped  int `json:"ignorados"`
}

func (s *Stats) add(o Stats) {
	s.Biddings += o.Biddings
	s.Items += o.Items
	s.Results += o.Results
	s.Skipped += o.Skipped
}

type RunOptions struct {
	Start time.Time
	End   time.Time
	// IBGECodes restricts the run. Empty means every registered municipality.
	IBGECodes []string
	Trigger   string
}

// Summary is the outcome of a collection run.
type Summary struct {
	RunID          uuid.UUID `json:"run_id"`
	Status         string    `json:"status"`
	Municipalities int       `json:"municipios"`
	Stats
	Failed []string `json:"falhas,omitempty"`
}

type CollectorOptions struct {
	Concurrency int
	RetryLimit  int
	Now         func() time.Time
}

type Collector struct {
	source  Source
	storage *store.Storage
	log     *logger.Logger
	metrics *metrics.Metrics

	concurrency int
	retryLimit  int
	now         func() time.Time
}

func NewCollector(source Source, storage *store.Storage, log *logger.Logger, m *metrics.Metrics, opts CollectorOptions) *Collector {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RetryLimit < 0 {
		opts.RetryLimit = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{
		source:      source,
		storage:     storage,
		log:         log,
		metrics:     m,
		concurrency: opts.Concurrency,
		retryLimit:  opts.RetryLimit,
		now:         opts.Now,
	}
}

func (c *Collector) municipalities(ctx context.Context, codes []string) ([]domain.Municipality, error) {
	if len(codes) == 0 {
		return c.storage.Municipalities.ListMunicipalities(ctx)
	}
	out := make([]domain.Municipality, 0, len(codes))
	for _, code := range codes {
		m, err := c.storage.Municipalities.GetMunicipalityByIBGE(ctx, code)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Run collects every selected municipality with a bounded pool of workers.
// Failed municipalities are queued again until the retry limit is reached.
func (c *Collector) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	const component = "Collector"

	if opts.End.IsZero() {
		opts.End = c.now()
	}
	if opts.Start.IsZero() {
		opts.Start = opts.End.AddDate(-2, 0, 0)
	}
	if opts.Start.After(opts.End) {
		return Summary{}, fmt.Errorf("invalid collection window %s..%s", opts.Start.Format(time.DateOnly), opts.End.Format(time.DateOnly))
	}
	if opts.Trigger == "" {
		opts.Trigger = store.TriggerTypeManual
	}

	munis, err := c.municipalities(ctx, opts.IBGECodes)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to resolve municipalities: %w", err)
	}

	scope := store.ScopeState
	if len(opts.IBGECodes) > 0 {
		scope = store.ScopeMunicipality
	}
	history := &store.IngestionHistory{
		RunID:         uuid.New(),
		ReferenceDate: opts.End,
		Source:        store.SourcePNCP,
		TriggerType:   opts.Trigger,
		Scope:         scope,
		Status:        store.StatusRunning,
	}
	if err := c.storage.IngestionHistory.InsertIngestionHistory(ctx, history); err != nil {
		return Summary{}, err
	}

	c.log.Info(component, "Starting collection: run=%s municipalities=%d window=%s..%s concurrency=%d",
		history.RunID, len(munis), opts.Start.Format(time.DateOnly), opts.End.Format(time.DateOnly), c.concurrency)

	summary := Summary{RunID: history.RunID, Municipalities: len(munis)}
	var processed []string

	if len(munis) > 0 {
		jobChan := make(chan Job, len(munis))
		resultChan := make(chan JobResult, len(munis))

		var wg sync.WaitGroup
		for i := 0; i < min(c.concurrency, len(munis)); i++ {
			wg.Add(1)
			go c.worker(ctx, &wg, jobChan, resultChan)
		}

		for _, m := range munis {
			jobChan <- Job{Municipality: m, Start: opts.Start, End: opts.End}
		}

		// Feedback loop: every job yields exactly one result per attempt.
		pending := len(munis)
		for pending > 0 {
			r := <-resultChan
			pending--
			code := r.Job.Municipality.IBGECode

			if r.Error != nil {
				if r.Job.Attempt < c.retryLimit && ctx.Err() == nil {
					c.log.Warn(component, "Job failed, queuing for retry: municipality=%s attempt=%d err=%v", code, r.Job.Attempt, r.Error)
					r.Job.Attempt++
					pending++
					jobChan <- r.Job
					continue
				}
				c.log.Error(component, "Job failed after max retries: municipality=%s err=%v", code, r.Error)
				summary.Failed = append(summary.Failed, code)
			} else {
				c.log.Info(component, "Job completed: municipality=%s biddings=%d items=%d results=%d", code, r.Stats.Biddings, r.Stats.Items, r.Stats.Results)
				processed = append(processed, code)
			}
			summary.add(r.Stats)
		}
		close(jobChan)
		wg.Wait()
	}

	switch {
	case len(summary.Failed) == 0:
		summary.Status = store.StatusSuccess
	case len(processed) == 0:
		summary.Status = store.StatusFailure
	default:
		summary.Status = store.StatusPartial
	}

	// The run context may be cancelled already; the final status must still land.
	if err := c.storage.IngestionHistory.UpdateIngestionStatus(context.WithoutCancel(ctx), history.ID, summary.Status, processed); err != nil {
		c.log.Error(component, "Failed to update final status: id=%d status=%s err=%v", history.ID, summary.Status, err)
	}
	c.metrics.AddCollectedBiddings(summary.Biddings)

	c.log.Info(component, "Collection finished: run=%s status=%s biddings=%d failed=%d", summary.RunID, summary.Status, summary.Biddings, len(summary.Failed))
	if summary.Status == store.StatusFailure {
		return summary, errors.New("collection failed for every municipality")
	}
	return summary, ctx.Err()
}

func (c *Collector) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan Job, results chan<- JobResult) {
	defer wg.Done()
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- JobResult{Job: job, Error: err}
			continue
		}
		stats, err := c.CollectMunicipality(ctx, job.Municipality, job.Start, job.End)
		results <- JobResult{Job: job, Stats: stats, Error: err}
	}
}

// CollectMunicipality loads every contract published for the municipality in
// the window, with its items and results. Only a failure to list contracts is
// returned; per-contract problems are logged and counted as skipped.
func (c *Collector) CollectMunicipality(ctx context.Context, m domain.Municipality, start, end time.Time) (Stats, error) {
	const component = "Loader"
	var stats Stats

	contracts, err := c.source.FetchAllContracts(ctx, ContractsQuery{Start: start, End: end, IBGECode: m.IBGECode})
	if err != nil {
		return stats, fmt.Errorf("failed to fetch contracts of %s: %w", m.IBGECode, err)
	}

	for _, ct := range contracts {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		org := ToOrganization(ct)
		bidding := ToBidding(ct)
		if org.CNPJ == "" || bidding.ControlNumber == "" {
			c.log.Warn(component, "Skipping contract without organization or control number: municipality=%s", m.IBGECode)
			stats.Skipped++
			continue
		}

		if err := c.storage.Organizations.GetOrCreateOrganization(ctx, &org); err != nil {
			c.log.Error(component, "Failed to store organization %s: %v", org.CNPJ, err)
			stats.Skipped++
			continue
		}

		bidding.OrganizationID = &org.ID
		bidding.MunicipalityID = &m.ID
		if err := c.storage.Biddings.UpsertBidding(ctx, &bidding); err != nil {
			c.log.Error(component, "Failed to store bidding %s: %v", bidding.ControlNumber, err)
			stats.Skipped++
			continue
		}
		stats.Biddings++

		itemStats := c.collectItems(ctx, bidding, org.CNPJ)
		stats.add(itemStats)
	}

	return stats, nil
}

// CollectBidding refreshes the items and results of a stored bidding.
func (c *Collector) CollectBidding(ctx context.Context, biddingID int64) (Stats, error) {
	bidding, err := c.storage.Biddings.GetBidding(ctx, biddingID)
	if err != nil {
		return Stats{}, err
	}
	if bidding.OrganizationID == nil {
		return Stats{}, fmt.Errorf("bidding %d has no organization", biddingID)
	}
	org, err := c.storage.Organizations.GetOrganization(ctx, *bidding.OrganizationID)
	if err != nil {
		return Stats{}, err
	}
	return c.collectItems(ctx, bidding, org.CNPJ), nil
}

func (c *Collector) collectItems(ctx context.Context, b domain.Bidding, cnpj string) Stats {
	const component = "Loader"
	var stats Stats

	if b.PurchaseYear == nil || b.PurchaseSequence == nil {
		c.log.Debug(component, "Bidding without year or sequence, items skipped: %s", b.ControlNumber)
		return stats
	}
	year, seq := *b.PurchaseYear, *b.PurchaseSequence

	items, err := c.source.FetchItems(ctx, cnpj, year, seq)
	if err != nil {
		c.log.Error(component, "Failed to fetch items of %s: %v", b.ControlNumber, err)
		stats.Skipped++
		return stats
	}

	for _, raw := range items {
		item := ToItem(b.ID, raw)
		if err := c.storage.Items.UpsertItem(ctx, &item); err != nil {
			c.log.Error(component, "Failed to store item %d of %s: %v", raw.Number, b.ControlNumber, err)
			stats.Skipped++
			continue
		}
		stats.Items++

		if !b.HasResult && !raw.HasResult {
			continue
		}

		results, err := c.source.FetchResults(ctx, cnpj, year, seq, raw.Number)
		if err != nil {
			c.log.Error(component, "Failed to fetch results of item %d of %s: %v", raw.Number, b.ControlNumber, err)
			stats.Skipped++
			continue
		}

		for _, rr := range results {
			supplier := ToSupplier(rr)
			if supplier.Document == "" {
				stats.Skipped++
				continue
			}
			if err := c.storage.Suppliers.UpsertSupplier(ctx, &supplier); err != nil {
				c.log.Error(component, "Failed to store supplier %s: %v", supplier.Document, err)
				stats.Skipped++
				continue
			}
			result := ToResult(item.ID, supplier.ID, rr)
			if err := c.storage.Results.UpsertResult(ctx, &result); err != nil {
				c.log.Error(component, "Failed to store result of item %d: %v", item.ID, err)
				stats.Skipped++
				continue
			}
			stats.Results++
		}
	}
	return stats
}

// Window returns the publication window ending at now and covering the
// previous lookbackDays days.
func Window(now time.Time, lookbackDays int) (time.Time, time.Time) {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	return now.AddDate(0, 0, -lookbackDays), now
}
