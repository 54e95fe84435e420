package pncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/retry"
	"golang.org/x/time/rate"
)

const component = "PNCP"

const (
	DefaultBaseURL  = "https://pncp.gov.br/api/consulta/v1"
	DefaultPageSize = 50
	MaxPageSize     = 500

	contractsPath = "/contratacoes/publicacao"
	dateLayout    = "20060102"
)

type ClientOptions struct {
	BaseURL  string
	UF       string
	PageSize int
	// RPS bounds the request rate across every goroutine using the client.
	RPS        float64
	Timeout    time.Duration
	Retry      retry.Policy
	HTTPClient *http.Client
}

type Client struct {
	baseURL  string
	uf       string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	policy   retry.Policy
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewClient(opts ClientOptions, log *logger.Logger, m *metrics.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UF == "" {
		opts.UF = "GO"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:  opts.BaseURL,
		uf:       opts.UF,
		pageSize: opts.PageSize,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), 1),
		policy:   opts.Retry,
		log:      log,
		metrics:  m,
	}
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pncp: %s returned status %d", e.URL, e.Code)
}

// ContractsQuery selects publications in [Start, End].
type ContractsQuery struct {
	Start        time.Time
	End          time.Time
	IBGECode     string
	ModalityCode int
}

// FetchContractsPage fetches one page (1-based) of published contracts.
func (c *Client) FetchContractsPage(ctx context.Context, q ContractsQuery, page int) (Page, error) {
	params := url.Values{}
	params.Set("dataInicial", q.Start.Format(dateLayout))
	params.Set("dataFinal", q.End.Format(dateLayout))
	params.Set("uf", c.uf)
	params.Set("pagina", strconv.Itoa(page))
	params.Set("tamanhoPagina", strconv.Itoa(c.pageSize))
	if q.IBGECode != "" {
		params.Set("codigoMunicipioIbge", q.IBGECode)
	}
	if q.ModalityCode > 0 {
		params.Set("codigoModalidadeContratacao", strconv.Itoa(q.ModalityCode))
	}

	body, err := c.get(ctx, "contratacoes", contractsPath, params)
	if err != nil {
		return Page{}, err
	}
	var p Page
	if len(body) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, fmt.Errorf("failed to decode contracts page %d: %w", page, err)
	}
	return p, nil
}

// FetchAllContracts follows pages until the API reports no next page.
func (c *Client) FetchAllContracts(ctx context.Context, q ContractsQuery) ([]Contract, error) {
	var all []Contract
	for page := 1; ; page++ {
		c.log.Debug(component, "Fetching page: page=%d municipality=%s", page, q.IBGECode)
		p, err := c.FetchContractsPage(ctx, q, page)
		if err != nil {
			return all, err
		}
		all = append(all, p.Data...)
		if !p.HasNext() || len(p.Data) == 0 {
			break
		}
	}
	c.log.Info(component, "Contracts fetched: municipality=%s total=%d", q.IBGECode, len(all))
	return all, nil
}

func (c *Client) FetchItems(ctx context.Context, cnpj string, year int, sequence string) ([]Item, error) {
	path := fmt.Sprintf("/orgaos/%s/compras/%d/%s/itens", url.PathEscape(cnpj), year, url.PathEscape(sequence))
	body, err := c.get(ctx, "itens", path, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[Item](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode items of %s/%d/%s: %w", cnpj, year, sequence, err)
	}
	return items, nil
}

func (c *Client) FetchResults(ctx context.Context, cnpj string, year int, sequence string, itemNumber int) ([]Result, error) {
	path := fmt.Sprintf("/orgaos/%s/compras/%d/%s/itens/%d/resultados", url.PathEscape(cnpj), year, url.PathEscape(sequence), itemNumber)
	body, err := c.get(ctx, "resultados", path, nil)
	if err != nil {
		return nil, err
	}
	results, err := decodeList[Result](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode results of %s/%d/%s/%d: %w", cnpj, year, sequence, itemNumber, err)
	}
	return results, nil
}

// get performs a rate limited GET with retries. 204 and 404 yield an empty
// body; other 4xx responses except 429 are not retried.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := retry.Do(ctx, c.policy, c.log, endpoint, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			return nil, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return nil, &StatusError{URL: u, Code: resp.StatusCode}
		case resp.StatusCode >= 400:
			io.Copy(io.Discard, resp.Body)
			return nil, retry.Permanent(&StatusError{URL: u, Code: resp.StatusCode})
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		c.metrics.IncCollectorRequest(endpoint, "error")
		c.log.Error(component, "Request failed: url=%s err=%v", u, err)
		return nil, err
	}
	c.metrics.IncCollectorRequest(endpoint, "ok")
	return body, nil
}
