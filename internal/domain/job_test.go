package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenated", "03-1234-5678", "0312345678"},
		{"parens", "03(1234)5678", "0312345678"},
		{"full width", "０３−１２３４−５６７８", "0312345678"},
		{"mixed junk", "TEL: 090-1234-5678 (代表)", "09012345678"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare digits", "1000001", "100-0001"},
		{"already formed", "100-0001", "100-0001"},
		{"with mark", "〒100-0001", "100-0001"},
		{"full width", "１００−０００１", "100-0001"},
		{"wrong length untouched", "12345", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePostalCode(tt.in))
		})
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0312345678", "03-1234-5678"},
		{"0612345678", "06-1234-5678"},
		{"09012345678", "090-1234-5678"},
		{"0120123456", "0120-12-3456"},
		{"0451234567", "045-123-4567"},
		{"", ""},
		{"12345", "12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPhone(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeFillsDerivedFields(t *testing.T) {
	j := JobRecord{Phone: "03-1234-5678", PostalCode: "1000001"}
	j.Normalize()
	assert.Equal(t, "0312345678", j.PhoneNormalized)
	assert.Equal(t, "100-0001", j.PostalCode)
}

func TestKey(t *testing.T) {
	j := JobRecord{Source: "townwork", JobID: "abc123"}
	assert.Equal(t, "townwork:abc123", j.Key())
}
