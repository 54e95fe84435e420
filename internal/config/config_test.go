package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "https://pncp.gov.br/api/consulta/v1", cfg.PNCP.BaseURL)
	assert.Equal(t, "GO", cfg.PNCP.UF)
	assert.Equal(t, 50, cfg.PNCP.PageSize)
	assert.Equal(t, 30*time.Second, cfg.PNCP.Timeout)
	assert.Equal(t, 24, cfg.Analysis.PriceWindowMonths)
	assert.Equal(t, 12, cfg.Analysis.TrendMonths)
	assert.Equal(t, 30, cfg.Analysis.AnomalyLookbackDays)
	assert.Equal(t, 365, cfg.Analysis.RecurringSupplierDays)
	assert.Equal(t, "America/Sao_Paulo", cfg.Scheduler.Timezone)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LAP_HTTP_ADDR", ":9090")
	t.Setenv("LAP_PNCP_PAGE_SIZE", "100")
	t.Setenv("LAP_SCHEDULER_COLLECTION_TIMES", "07:30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 100, cfg.PNCP.PageSize)
	assert.Equal(t, "07:30", cfg.Scheduler.CollectionTimes)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"LAP_PNCP_UF":                    "GOI",
		"LAP_PNCP_PAGE_SIZE":             "1",
		"LAP_LOG_LEVEL":                  "verbose",
		"LAP_SCHEDULER_TIMEZONE":         "Mars/Olympus",
		"LAP_SCHEDULER_COLLECTION_TIMES": "25:00",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseClockTimes(t *testing.T) {
	times, err := ParseClockTimes("06:00, 12:00,18:30,00:00")
	require.NoError(t, err)
	require.Len(t, times, 4)
	assert.Equal(t, ClockTime{Hour: 18, Minute: 30}, times[2])
	assert.Equal(t, "00:00", times[3].String())

	_, err = ParseClockTimes(" , ")
	assert.Error(t, err)
}

func TestLoadMunicipalities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "municipios.yaml")
	content := `municipios:
  - codigo_ibge: "5201405"
    municipio: Aparecida de Goiânia
    uf: GO
    distancia_km: 0
  - codigo_ibge: "5208707"
    municipio: Goiânia
    uf: GO
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := LoadMunicipalities(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Aparecida de Goiânia", got[0].Name)
	require.NotNil(t, got[0].DistanceKm)
	assert.Equal(t, 0, *got[0].DistanceKm)
	assert.Nil(t, got[1].DistanceKm)
}

func TestLoadMunicipalitiesRejectsBadCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "municipios.yaml")
	require.NoError(t, os.WriteFile(path, []byte("municipios:\n  - codigo_ibge: \"52\"\n    municipio: X\n    uf: GO\n"), 0o600))

	_, err := LoadMunicipalities(path)
	assert.Error(t, err)
}

func TestSeedFileIsValid(t *testing.T) {
	got, err := LoadMunicipalities(filepath.Join("..", "..", "config", "municipios.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
