package sanctions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/retry"
)

const component = "Sanctions"

const (
	DefaultBaseURL = "https://api.portaldatransparencia.gov.br/api-de-dados"
	apiKeyHeader   = "chave-api-dados"
)

// Record is one sanction as returned by the Portal da Transparência
// /ceis and /cnep endpoints.
type Record struct {
	ID           int64  `json:"id"`
	StartDate    string `json:"dataInicioSancao"`
	EndDate      string `json:"dataFimSancao"`
	SanctionType struct {
		Description string `json:"descricaoResumida"`
	} `json:"tipoSancao"`
	SanctioningOrg struct {
		Name string `json:"nome"`
		UF   string `json:"siglaUf"`
	} `json:"orgaoSancionador"`
	Sanctioned struct {
		Name     string `json:"nome"`
		Document string `json:"codigoFormatado"`
	} `json:"sancionado"`
}

// ToSanction converts the record into the local table row for the registry.
func (r Record) ToSanction(registry, document string) domain.Sanction {
	s := domain.Sanction{
		Document:  domain.CleanDocument(document),
		Name:      clip(r.Sanctioned.Name),
		Source:    registry,
		StartDate: ParseDate(r.StartDate),
		EndDate:   ParseDate(r.EndDate),
	}
	if d := domain.CleanDocument(r.Sanctioned.Document); d != "" {
		s.Document = d
	}
	if s.Name == "" {
		s.Name = "N/A"
	}
	s.SanctionType = optional(r.SanctionType.Description)
	s.SanctioningOrg = optional(r.SanctioningOrg.Name)
	s.UF = stateCode(r.SanctioningOrg.UF)
	return s
}

const maxTextLength = 255

func clip(v string) string {
	v = strings.TrimSpace(v)
	if r := []rune(v); len(r) > maxTextLength {
		return string(r[:maxTextLength])
	}
	return v
}

func optional(v string) *string {
	v = clip(v)
	if v == "" {
		return nil
	}
	return &v
}

func stateCode(v string) *string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) != 2 {
		return nil
	}
	return &v
}

// ParseDate accepts dd/mm/yyyy, the portal's format, and yyyy-mm-dd.
// Anything else yields nil.
func ParseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"02/01/2006", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

type ClientOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retry      retry.Policy
	HTTPClient *http.Client
}

// Client queries the CEIS and CNEP registries.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	policy  retry.Policy
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(opts ClientOptions, log *logger.Logger, m *metrics.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
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
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    httpClient,
		policy:  opts.Retry,
		log:     log,
		metrics: m,
	}
}

// Lookup returns the sanctions registered against document in registry
// (domain.SourceCEIS or domain.SourceCNEP).
func (c *Client) Lookup(ctx context.Context, registry, document string) ([]Record, error) {
	params := url.Values{}
	params.Set("cnpjSancionado", domain.CleanDocument(document))
	params.Set("pagina", "1")
	u := c.baseURL + "/" + strings.ToLower(registry) + "?" + params.Encode()

	records, err := retry.Do(ctx, c.policy, c.log, registry, func(ctx context.Context) ([]Record, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

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
			return nil, fmt.Errorf("%s returned status %d", registry, resp.StatusCode)
		case resp.StatusCode >= 400:
			io.Copy(io.Discard, resp.Body)
			return nil, retry.Permanent(fmt.Errorf("%s returned status %d", registry, resp.StatusCode))
		}

		var out []Record
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, retry.Permanent(fmt.Errorf("failed to decode %s response: %w", registry, err))
		}
		return out, nil
	})
	if err != nil {
		c.metrics.IncSanctionLookup(registry, "error")
		return nil, err
	}
	outcome := "clear"
	if len(records) > 0 {
		outcome = "found"
	}
	c.metrics.IncSanctionLookup(registry, outcome)
	c.log.Debug(component, "Lookup done: registry=%s document=%s records=%d", registry, domain.CleanDocument(document), len(records))
	return records, nil
}
