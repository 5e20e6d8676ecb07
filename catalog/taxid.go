package catalog

import (
	"strings"

	"github.com/warp/hours-engine/ledger"
)

const (
	cpfDigits  = 11
	cnpjDigits = 14
)

// NormalizeTaxID keeps the digits of a CPF or CNPJ and left-pads them with
// zeros: up to 11 digits is a CPF, 12 to 14 a CNPJ. Leading zeros are often
// lost when ids pass through spreadsheets, hence the padding.
func NormalizeTaxID(raw string) (ledger.ClientID, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch n := len(digits); {
	case n == 0:
		return "", &ledger.ValidationError{Field: "tax_id", Message: "no digits in " + quote(raw)}
	case n <= cpfDigits:
		return ledger.ClientID(strings.Repeat("0", cpfDigits-n) + digits), nil
	case n <= cnpjDigits:
		return ledger.ClientID(strings.Repeat("0", cnpjDigits-n) + digits), nil
	}
	return "", &ledger.ValidationError{Field: "tax_id", Message: "more than 14 digits in " + quote(raw)}
}

// IsCNPJ reports whether a normalized id is a company id.
func IsCNPJ(id ledger.ClientID) bool { return len(id) == cnpjDigits }

func quote(s string) string { return `"` + s + `"` }
