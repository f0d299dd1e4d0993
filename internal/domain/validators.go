package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	phonePattern      = regexp.MustCompile(`^(\+7|8)[0-9]{10}$`)
	phoneNoise        = regexp.MustCompile(`[\s\-()]`)
	vendorCodePattern = regexp.MustCompile(`^[A-Z0-9\-_]{3,20}$`)
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// NormalizePhone strips spaces, dashes and parentheses.
func NormalizePhone(phone string) string {
	return phoneNoise.ReplaceAllString(phone, "")
}

// ValidPhone reports whether the phone is a Russian number in +7 or 8 form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// FormatPhone renders a valid phone as +7 (XXX) XXX-XX-XX and returns other
// input unchanged.
func FormatPhone(phone string) string {
	clean := NormalizePhone(phone)
	if !phonePattern.MatchString(clean) {
		return phone
	}
	digits := clean[len(clean)-10:]
	return "+7 (" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:8] + "-" + digits[8:10]
}

// ValidVendorCode reports whether code is 3-20 upper-case letters, digits, dashes or underscores.
func ValidVendorCode(code string) bool {
	return vendorCodePattern.MatchString(code)
}

// PasswordProblems lists the password policy rules the candidate breaks.
func PasswordProblems(password string) []string {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "min_length")
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("!@#$%^&*(),.?\":{}|<>", r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "uppercase")
	}
	if !lower {
		problems = append(problems, "lowercase")
	}
	if !digit {
		problems = append(problems, "digit")
	}
	if !special {
		problems = append(problems, "special")
	}
	return problems
}
