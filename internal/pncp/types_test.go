package pncp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractDecoding(t *testing.T) {
	raw := `{
		"sequencialCompra": 12,
		"numeroCompra": "90012/2025",
		"anoCompra": 2025,
		"numeroControlePNCP": "01612092000123-1-000012/2025",
		"orgaoEntidade": {"cnpj": "01612092000123", "razaoSocial": "MUNICIPIO DE GOIANIA", "poderId": "E", "esferaId": "M"},
		"unidadeOrgao": {"codigoIbge": "5208707", "ufSigla": "GO"},
		"modalidadeId": 6,
		"amparoLegal": {"codigo": 1, "nome": "Lei 14.133/2021, Art. 28, I"},
		"dataPublicacaoPncp": "2025-03-10T09:15:00",
		"dataAberturaProposta": "2025-03-20T08:00:00.123",
		"dataAtualizacao": null,
		"valorTotalEstimado": 15000.5,
		"existeResultado": true
	}`

	var c Contract
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, Text("12"), c.PurchaseSequence)
	assert.Equal(t, "5208707", string(c.Unit.IBGECode))
	require.NotNil(t, c.PublishedAt)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC), c.PublishedAt.Time)
	assert.Equal(t, 20, c.ProposalOpeningAt.Day())
	assert.Nil(t, c.UpdatedAt)
	assert.Nil(t, c.UpdatedAt.TimePtr())
	assert.True(t, c.HasResult)
}

func TestTextRejectsObjects(t *testing.T) {
	var v struct {
		T Text `json:"t"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"t": {}}`), &v))
	require.NoError(t, json.Unmarshal([]byte(`{"t": null}`), &v))
	assert.Nil(t, v.T.Ptr())
}

func TestParseTimestamp(t *testing.T) {
	tests := map[string]time.Time{
		"2025-01-02":                time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		"2025-01-02 10:11:12":       time.Date(2025, 1, 2, 10, 11, 12, 0, time.UTC),
		"2025-01-02T10:11:12Z":      time.Date(2025, 1, 2, 10, 11, 12, 0, time.UTC),
		"2025-01-02T10:11:12-03:00": time.Date(2025, 1, 2, 13, 11, 12, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseTimestamp("02/01/2025")
	assert.Error(t, err)
}

func TestDecodeListAcceptsBothShapes(t *testing.T) {
	bare, err := decodeList[Item]([]byte(`[{"numeroItem": 1}, {"numeroItem": 2}]`))
	require.NoError(t, err)
	assert.Len(t, bare, 2)

	wrapped, err := decodeList[Item]([]byte(`{"data": [{"numeroItem": 3}]}`))
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, 3, wrapped[0].Number)

	empty, err := decodeList[Item](nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPageHasNext(t *testing.T) {
	assert.True(t, Page{HasNextIndicator: true}.HasNext())
	assert.True(t, Page{RemainingPages: 2}.HasNext())
	assert.False(t, Page{}.HasNext())
}
