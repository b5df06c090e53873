package patient

import (
	"fmt"
	"strings"
)

const cpfLength = 11

// NormalizeCPF trims surrounding space and drops the '.' and '-' separators.
// Any other character is kept so ValidCPF rejects it.
func NormalizeCPF(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r != '.' && r != '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks length, rejects repeated-digit sequences and verifies both
// check digits. Only digits and the '.' and '-' separators are accepted.
func ValidCPF(raw string) bool {
	cpf := NormalizeCPF(raw)
	if len(cpf) != cpfLength || !allDigits(cpf) {
		return false
	}

	allSame := true
	for i := 1; i < cpfLength; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	digits := make([]int, cpfLength)
	for i := range cpf {
		digits[i] = int(cpf[i] - '0')
	}

	return checkDigit(digits[:9]) == digits[9] && checkDigit(digits[:10]) == digits[10]
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func checkDigit(prefix []int) int {
	sum := 0
	weight := len(prefix) + 1
	for _, d := range prefix {
		sum += d * weight
		weight--
	}
	d := 11 - sum%11
	if d >= 10 {
		return 0
	}
	return d
}

// FormatCPF renders an 11 digit CPF as 000.000.000-00. Anything else is
// returned unchanged.
func FormatCPF(raw string) string {
	cpf := NormalizeCPF(raw)
	if len(cpf) != cpfLength || !allDigits(cpf) {
		return raw
	}
	return fmt.Sprintf("%s.%s.%s-%s", cpf[0:3], cpf[3:6], cpf[6:9], cpf[9:11])
}
