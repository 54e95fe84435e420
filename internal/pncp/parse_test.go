package pncp

import (
	"strings"
	"testing"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBiddingFillsNamesFromCodes(t *testing.T) {
	modality, status := 6, 4
	c := Contract{
		ControlNumber:    " 01612092000123-1-000012/2025 ",
		PurchaseSequence: "12",
		ModalityID:       &modality,
		StatusID:         &status,
		Object:           "  ",
	}

	b := ToBidding(c)
	assert.Equal(t, "01612092000123-1-000012/2025", b.ControlNumber)
	require.NotNil(t, b.PurchaseSequence)
	assert.Equal(t, "12", *b.PurchaseSequence)
	require.NotNil(t, b.ModalityName)
	assert.Equal(t, "Pregão", *b.ModalityName)
	require.NotNil(t, b.StatusName)
	assert.Equal(t, "Homologada", *b.StatusName)
	assert.Nil(t, b.Object)
	assert.Nil(t, b.PurchaseNumber)
}

func TestToOrganization(t *testing.T) {
	c := Contract{Organization: Entity{CNPJ: "01.612.092/0001-23", PowerID: "E"}}
	o := ToOrganization(c)
	assert.Equal(t, "01612092000123", o.CNPJ)
	assert.Equal(t, "N/A", o.LegalName)
	require.NotNil(t, o.PowerID)
	assert.Nil(t, o.SphereID)
}

func TestToSupplier(t *testing.T) {
	s := ToSupplier(Result{
		SupplierDocument: "11.222.333/0001-81",
		SupplierName:     strings.Repeat("A", 300),
		SupplierSizeName: "Microempresa",
	})
	assert.Equal(t, "11222333000181", s.Document)
	assert.Len(t, s.LegalName, maxNameLength)
	require.NotNil(t, s.PersonType)
	assert.Equal(t, "PJ", *s.PersonType)
	require.NotNil(t, s.SizeName)
	assert.Equal(t, domain.SizeME, *s.SizeName)
}

func TestNormalizeSize(t *testing.T) {
	tests := map[string]string{
		"ME":                       domain.SizeME,
		"EPP":                      domain.SizeEPP,
		"Empresa de Pequeno Porte": domain.SizeEPP,
		"Demais":                   domain.SizeOthers,
		"Não se aplica":            domain.SizeOthers,
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeSize(in), in)
	}
}
