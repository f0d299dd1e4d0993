package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPhone(t *testing.T) {
	valid := []string{"+79161234567", "89161234567", "+7 (916) 123-45-67", "8 916 123 45 67"}
	for _, phone := range valid {
		assert.True(t, ValidPhone(phone), phone)
	}

	invalid := []string{"", "9161234567", "+19161234567", "+7916123456", "8916123456a"}
	for _, phone := range invalid {
		assert.False(t, ValidPhone(phone), phone)
	}
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "+7 (916) 123-45-67", FormatPhone("89161234567"))
	assert.Equal(t, "+7 (916) 123-45-67", FormatPhone("+7-916-123-45-67"))
	assert.Equal(t, "12345", FormatPhone("12345"))
}

func TestValidVendorCode(t *testing.T) {
	assert.True(t, ValidVendorCode("SM-2024_A"))
	assert.False(t, ValidVendorCode("ab"))
	assert.False(t, ValidVendorCode("lower-case"))
	assert.False(t, ValidVendorCode("THIS-CODE-IS-WAY-TOO-LONG"))
}

func TestPasswordProblems(t *testing.T) {
	assert.Empty(t, PasswordProblems("Str0ng!pass"))
	assert.ElementsMatch(t, []string{"min_length", "uppercase", "digit", "special"}, PasswordProblems("weak"))
	assert.Equal(t, []string{"special"}, PasswordProblems("NoSpecial1"))
}
