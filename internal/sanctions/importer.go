package sanctions

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/retry"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
)

const DefaultDatasetURL = "https://portaldatransparencia.gov.br/download-de-dados"

// Column names of the CEIS/CNEP CSV datasets.
const (
	colRegistry  = "CADASTRO"
	colDocument  = "CPF OU CNPJ DO SANCIONADO"
	colName      = "NOME DO SANCIONADO"
	colRFBName   = "RAZÃO SOCIAL - CADASTRO RECEITA"
	colCategory  = "CATEGORIA DA SANÇÃO"
	colStart     = "DATA INÍCIO SANÇÃO"
	colEnd       = "DATA FINAL SANÇÃO"
	colOrg       = "ÓRGÃO SANCIONADOR"
	colOrgUF     = "UF ÓRGÃO SANCIONADOR"
	datasetDated = "20060102"
)

type ImporterOptions struct {
	DatasetURL string
	// WorkDir holds the downloaded archive and extracted files. Defaults to
	// a temporary directory removed after each import.
	WorkDir    string
	Retry      retry.Policy
	HTTPClient *http.Client
}

// Importer loads the full CEIS/CNEP datasets published as zipped CSV files.
type Importer struct {
	datasetURL string
	workDir    string
	policy     retry.Policy
	http       *http.Client
	storage    *store.Storage
	log        *logger.Logger
}

type ImportSummary struct {
	RunID    uuid.UUID `json:"run_id"`
	Registry string    `json:"cadastro"`
	Files    int       `json:"arquivos"`
	Imported int       `json:"importados"`
	Skipped  int       `json:"ignorados"`
	Status   string    `json:"status"`
}

func NewImporter(opts ImporterOptions, storage *store.Storage, log *logger.Logger) *Importer {
	if opts.DatasetURL == "" {
		opts.DatasetURL = DefaultDatasetURL
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Importer{
		datasetURL: strings.TrimRight(opts.DatasetURL, "/"),
		workDir:    opts.WorkDir,
		policy:     opts.Retry,
		http:       httpClient,
		storage:    storage,
		log:        log,
	}
}

// DatasetURL is the download address of registry's dataset for date.
func (im *Importer) DatasetURL(registry string, date time.Time) string {
	return fmt.Sprintf("%s/%s/%s", im.datasetURL, strings.ToLower(registry), date.Format(datasetDated))
}

// Import downloads the registry dataset of date and upserts every row into
// the local sanctions table.
func (im *Importer) Import(ctx context.Context, registry string, date time.Time, trigger string) (ImportSummary, error) {
	const component = "SanctionsImporter"

	registry = strings.ToUpper(registry)
	if registry != domain.SourceCEIS && registry != domain.SourceCNEP {
		return ImportSummary{}, fmt.Errorf("unknown sanctions registry %q", registry)
	}
	if trigger == "" {
		trigger = store.TriggerTypeManual
	}

	history := &store.IngestionHistory{
		RunID:         uuid.New(),
		ReferenceDate: date,
		Source:        store.SourceSanctions,
		TriggerType:   trigger,
		Scope:         store.ScopeNational,
		Status:        store.StatusRunning,
	}
	if err := im.storage.IngestionHistory.InsertIngestionHistory(ctx, history); err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{RunID: history.RunID, Registry: registry}

	err := im.run(ctx, registry, date, &summary)
	switch {
	case err != nil:
		summary.Status = store.StatusFailure
	case summary.Skipped > 0:
		summary.Status = store.StatusPartial
	default:
		summary.Status = store.StatusSuccess
	}

	var processed []string
	if err == nil {
		processed = []string{registry}
	}
	if uerr := im.storage.IngestionHistory.UpdateIngestionStatus(context.WithoutCancel(ctx), history.ID, summary.Status, processed); uerr != nil {
		im.log.Error(component, "Failed to update final status: id=%d status=%s err=%v", history.ID, summary.Status, uerr)
	}

	if err != nil {
		im.log.Error(component, "Import failed: registry=%s date=%s err=%v", registry, date.Format(time.DateOnly), err)
		return summary, err
	}
	im.log.Info(component, "Import finished: registry=%s files=%d imported=%d skipped=%d", registry, summary.Files, summary.Imported, summary.Skipped)
	return summary, nil
}

func (im *Importer) run(ctx context.Context, registry string, date time.Time, summary *ImportSummary) error {
	dir := im.workDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "sanctions-*")
		if err != nil {
			return fmt.Errorf("failed to create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	zipPath, err := im.download(ctx, im.DatasetURL(registry, date), filepath.Join(dir, strings.ToLower(registry)+"_"+date.Format(datasetDated)+".zip"))
	if err != nil {
		return err
	}
	files, err := Unzip(zipPath, filepath.Join(dir, "data"))
	if err != nil {
		return err
	}

	for _, f := range files {
		df, err := OpenFileAndDecode(f)
		if err != nil {
			return err
		}
		rows, skipped := SanctionsFromFrame(df, registry)
		summary.Files++
		summary.Skipped += skipped
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := im.storage.Sanctions.UpsertSanction(ctx, &rows[i]); err != nil {
				return err
			}
			summary.Imported++
		}
	}
	return nil
}

func (im *Importer) download(ctx context.Context, downloadURL, outputPath string) (string, error) {
	const component = "Downloader"
	im.log.Debug(component, "Starting download: url=%s", downloadURL)

	return retry.Do(ctx, im.policy, im.log, "download", func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			return "", retry.Permanent(err)
		}
		// The portal rejects requests without a browser user agent.
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3")

		resp, err := im.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("download %s returned status %d", downloadURL, resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return "", retry.Permanent(err)
			}
			return "", err
		}

		out, err := os.Create(outputPath)
		if err != nil {
			return "", retry.Permanent(fmt.Errorf("failed to create output file: %w", err))
		}
		defer out.Close()

		n, err := io.Copy(out, resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		im.log.Info(component, "Download completed: path=%s size=%d bytes", outputPath, n)
		return outputPath, nil
	})
}

// Unzip extracts the CSV files of the archive into destDir and returns their
// paths.
func Unzip(zipPath, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip file %s: %w", zipPath, err)
	}
	defer r.Close()

	var out []string
	for _, f := range r.File {
		filePath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(filePath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("invalid file path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		if err := extract(f, filePath); err != nil {
			return nil, err
		}
		out = append(out, filePath)
	}
	slices.Sort(out)
	return out, nil
}

func extract(f *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer dst.Close()

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zipped file %s: %w", f.Name, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// OpenFileAndDecode reads a Windows-1252, semicolon separated CSV file. Every
// column is kept as text so documents keep their leading zeros.
func OpenFileAndDecode(path string) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	decoded := charmap.Windows1252.NewDecoder().Reader(file)
	df := dataframe.ReadCSV(decoded,
		dataframe.WithDelimiter(';'),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to decode %s: %w", path, df.Err)
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, errors.New("dataframe is empty")
	}
	return df, nil
}

func column(df dataframe.DataFrame, names []string, name string, row int) string {
	if !slices.Contains(names, name) {
		return ""
	}
	return strings.TrimSpace(df.Col(name).Elem(row).String())
}

// SanctionsFromFrame maps dataset rows to sanctions. Rows without a valid
// CPF or CNPJ are skipped and counted.
func SanctionsFromFrame(df dataframe.DataFrame, registry string) ([]domain.Sanction, int) {
	names := df.Names()
	out := make([]domain.Sanction, 0, df.Nrow())
	skipped := 0

	for i := range df.Nrow() {
		doc := domain.CleanDocument(column(df, names, colDocument, i))
		if !validDocument(doc) {
			skipped++
			continue
		}

		source := strings.ToUpper(column(df, names, colRegistry, i))
		if source != domain.SourceCEIS && source != domain.SourceCNEP {
			source = registry
		}
		name := clip(column(df, names, colName, i))
		if name == "" {
			name = clip(column(df, names, colRFBName, i))
		}
		if name == "" {
			name = "N/A"
		}

		out = append(out, domain.Sanction{
			Document:       doc,
			Name:           name,
			Source:         source,
			SanctionType:   optional(column(df, names, colCategory, i)),
			StartDate:      ParseDate(column(df, names, colStart, i)),
			EndDate:        ParseDate(column(df, names, colEnd, i)),
			SanctioningOrg: optional(column(df, names, colOrg, i)),
			UF:             stateCode(column(df, names, colOrgUF, i)),
		})
	}
	return out, skipped
}
