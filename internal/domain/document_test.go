package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanDocument(t *testing.T) {
	assert.Equal(t, "11222333000181", CleanDocument("11.222.333/0001-81"))
	assert.Equal(t, "", CleanDocument("--"))
}

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"formatted", "11.222.333/0001-81", true},
		{"digits only", "11222333000181", true},
		{"wrong check digit", "11222333000182", false},
		{"all same digits", "11111111111111", false},
		{"too short", "1122233300018", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCNPJ(tt.input))
		})
	}
}

func TestValidCPF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"formatted", "529.982.247-25", true},
		{"digits only", "52998224725", true},
		{"wrong check digit", "52998224724", false},
		{"all same digits", "00000000000", false},
		{"too long", "529982247250", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCPF(tt.input))
		})
	}
}

func TestPersonType(t *testing.T) {
	assert.Equal(t, "PJ", PersonType("11.222.333/0001-81"))
	assert.Equal(t, "PF", PersonType("529.982.247-25"))
	assert.Equal(t, "", PersonType("123"))
}

func TestSanctionActive(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	past := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, Sanction{}.Active(now))
	assert.True(t, Sanction{EndDate: &today}.Active(now))
	assert.False(t, Sanction{EndDate: &past}.Active(now))
}

func TestAnomalyKey(t *testing.T) {
	bid, item := int64(3), int64(9)
	a := Anomaly{Type: AnomalyPriceExtreme, BiddingID: &bid, ItemID: &item}
	assert.Equal(t, AnomalyKey{BiddingID: 3, ItemID: 9, Type: AnomalyPriceExtreme}, a.Key())
	assert.Equal(t, "Preço extremamente alto (>100%)", AnomalyPriceExtreme.Label())
}
