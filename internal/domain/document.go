package domain

import "strings"

// CleanDocument strips every non digit character from a CNPJ or CPF.
func CleanDocument(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCNPJ checks length and both check digits of a CNPJ.
func ValidCNPJ(cnpj string) bool {
	d := CleanDocument(cnpj)
	if len(d) != 14 || repeated(d) {
		return false
	}
	first := checkDigit(d[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	if int(d[12]-'0') != first {
		return false
	}
	second := checkDigit(d[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(d[13]-'0') == second
}

// ValidCPF checks length and both check digits of a CPF.
func ValidCPF(cpf string) bool {
	d := CleanDocument(cpf)
	if len(d) != 11 || repeated(d) {
		return false
	}
	first := checkDigit(d[:9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2})
	if int(d[9]-'0') != first {
		return false
	}
	second := checkDigit(d[:10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(d[10]-'0') == second
}

// PersonType returns "PJ" for CNPJs and "PF" for CPFs, or "" when the
// document is neither.
func PersonType(doc string) string {
	switch d := CleanDocument(doc); {
	case ValidCNPJ(d):
		return "PJ"
	case ValidCPF(d):
		return "PF"
	}
	return ""
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
