package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-engine/ledger"
)

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		in   string
		want ledger.ClientID
		cnpj bool
	}{
		{"123.456.789-09", "12345678909", false},
		{"1234567890", "01234567890", false},
		{"42", "00000000042", false},
		{"12.345.678/0001-95", "12345678000195", true},
		{"345678000195", "00345678000195", true},
		{"  98765432100  ", "98765432100", false},
	}
	for _, tt := range tests {
		got, err := NormalizeTaxID(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.cnpj, IsCNPJ(got), tt.in)
	}

	for _, bad := range []string{"", "abc", "123456789012345"} {
		_, err := NormalizeTaxID(bad)
		assert.ErrorIs(t, err, ledger.ErrValidation, bad)
	}
}
