package encoding

import (
	"strings"
)

// crockfordAlphabet is Crockford's Base32 alphabet in lowercase.
// I, L, O and U are excluded to avoid transcription mistakes.
const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// EncodeCrockfordB32LC encodes input with Crockford's Base32 alphabet in
// lowercase without padding. The last symbol carries the remaining bits
// left-aligned.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		bits  = 0
		accum = 0
	)

	out.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		accum = accum<<8 | int(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			out.WriteByte(crockfordAlphabet[(accum>>bits)&0x1F])
		}
	}

	if bits > 0 {
		out.WriteByte(crockfordAlphabet[(accum<<uint(5-bits))&0x1F])
	}

	return out.String()
}

// NormalizeCrockfordB32LC folds human-typed Crockford Base32 into canonical
// form: whitespace and hyphens are dropped, letters are lowercased, O becomes
// 0 and I/L become 1.
func NormalizeCrockfordB32LC(input string) string {
	var out strings.Builder

	out.Grow(len(input))

	for _, char := range strings.ToLower(input) {
		switch char {
		case ' ', '\t', '\n', '\r', '-':
			continue
		case 'o':
			out.WriteRune('0')
		case 'i', 'l':
			out.WriteRune('1')
		default:
			out.WriteRune(char)
		}
	}

	return out.String()
}

// IsCrockfordB32LC reports whether input consists only of canonical
// lowercase Crockford Base32 symbols.
func IsCrockfordB32LC(input string) bool {
	for _, char := range input {
		if !strings.ContainsRune(crockfordAlphabet, char) {
			return false
		}
	}

	return true
}
