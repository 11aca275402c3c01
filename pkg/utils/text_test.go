package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"accents and case", "Maternidade São José", "maternidade sao jose"},
		{"upper without accents", "MATERNIDADE SAO JOSE", "maternidade sao jose"},
		{"cedilla", "ASSOCIAÇÃO", "associacao"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldText(tt.input))
		})
	}
}

func TestNormalizeKey_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "rua das flores, 10", NormalizeKey("  Rua   das\tFlores,  10 "))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"hospital", "e", "maternidade", "sao", "luiz"}, Tokens("Hospital e Maternidade São-Luiz"))
	assert.Empty(t, Tokens("  -- "))
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "2077485", OnlyDigits("2.077-485"))
	assert.Equal(t, "", OnlyDigits("abc"))
}
