package sanctions

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

var datasetCSV = strings.Join([]string{
	`"CADASTRO";"CPF OU CNPJ DO SANCIONADO";"NOME DO SANCIONADO";"RAZÃO SOCIAL - CADASTRO RECEITA";"CATEGORIA DA SANÇÃO";"DATA INÍCIO SANÇÃO";"DATA FINAL SANÇÃO";"ÓRGÃO SANCIONADOR";"UF ÓRGÃO SANCIONADOR"`,
	`"CEIS";"11.222.333/0001-81";"ACME LTDA";"ACME COMERCIO LTDA";"Impedimento";"01/02/2020";"";"Prefeitura de Goiânia";"GO"`,
	`"CEIS";"";"SEM DOCUMENTO";"";"Suspensão";"01/01/2021";"";"TCU";"DF"`,
	`"CEIS";"529.982.247-25";"";"JOÃO DA SILVA";"Suspensão";"01/01/2019";"01/01/2020";"TCU";"DF"`,
}, "\r\n") + "\r\n"

func encode1252(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1252.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpenFileAndDecodeKeepsTextColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ceis.csv", encode1252(t, datasetCSV))

	df, err := OpenFileAndDecode(path)
	require.NoError(t, err)
	assert.Equal(t, 3, df.Nrow())
	assert.Contains(t, df.Names(), colOrgUF)

	rows, skipped := SanctionsFromFrame(df, domain.SourceCEIS)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)

	assert.Equal(t, "11222333000181", rows[0].Document)
	assert.Equal(t, "ACME LTDA", rows[0].Name)
	require.NotNil(t, rows[0].SanctioningOrg)
	assert.Equal(t, "Prefeitura de Goiânia", *rows[0].SanctioningOrg)
	assert.Nil(t, rows[0].EndDate)

	assert.Equal(t, "52998224725", rows[1].Document)
	assert.Equal(t, "JOÃO DA SILVA", rows[1].Name)
	require.NotNil(t, rows[1].EndDate)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *rows[1].EndDate)
}

func TestOpenFileAndDecodeRejectsEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", encode1252(t, `"CADASTRO";"NOME DO SANCIONADO"`+"\r\n"))
	_, err := OpenFileAndDecode(path)
	assert.Error(t, err)
}

func TestUnzipExtractsOnlyCSV(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeFile(t, dir, "in.zip", buildZip(t, map[string][]byte{
		"20250601_CEIS.csv": []byte("a;b\n1;2\n"),
		"LEIAME.txt":        []byte("ignored"),
	}))

	files, err := Unzip(zipPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "20250601_CEIS.csv", filepath.Base(files[0]))
}

func TestUnzipRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeFile(t, dir, "evil.zip", buildZip(t, map[string][]byte{
		"../evil.csv": []byte("a;b\n"),
	}))

	_, err := Unzip(zipPath, filepath.Join(dir, "out"))
	assert.ErrorContains(t, err, "invalid file path")
}

func TestImportLoadsDataset(t *testing.T) {
	archive := buildZip(t, map[string][]byte{"20250601_CEIS.csv": encode1252(t, datasetCSV)})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ceis/20250601" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write(archive)
	}))
	defer srv.Close()

	mem := newMemory()
	im := NewImporter(ImporterOptions{DatasetURL: srv.URL, WorkDir: t.TempDir(), Retry: fastPolicy()}, mem.storage(), nil)

	summary, err := im.Import(context.Background(), "ceis", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCEIS, summary.Registry)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, store.StatusPartial, summary.Status)
	assert.Len(t, mem.sanctions, 2)

	require.Len(t, mem.history, 1)
	h := mem.history[0]
	assert.Equal(t, store.SourceSanctions, h.Source)
	assert.Equal(t, store.ScopeNational, h.Scope)
	assert.Equal(t, store.TriggerTypeManual, h.TriggerType)
	assert.Equal(t, []string{domain.SourceCEIS}, []string(h.ProcessedCodes))
}

func TestImportRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mem := newMemory()
	im := NewImporter(ImporterOptions{DatasetURL: srv.URL, WorkDir: t.TempDir(), Retry: fastPolicy()}, mem.storage(), nil)

	summary, err := im.Import(context.Background(), domain.SourceCNEP, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), store.TriggerTypeScheduled)
	require.Error(t, err)
	assert.Equal(t, store.StatusFailure, summary.Status)
	assert.Equal(t, store.StatusFailure, mem.history[0].Status)
	assert.Empty(t, mem.history[0].ProcessedCodes)
}

func TestImportRejectsUnknownRegistry(t *testing.T) {
	im := NewImporter(ImporterOptions{}, newMemory().storage(), nil)
	_, err := im.Import(context.Background(), "cadin", time.Now(), "")
	assert.Error(t, err)
}
