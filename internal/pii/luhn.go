package pii

import "strings"

// stripSeparators removes the spaces and dashes commonly used to group
// card and account numbers.
func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// Luhn reports whether s passes the Luhn checksum. Spaces and dashes are
// ignored; any other non-digit character, or no digits at all, fails.
func Luhn(s string) bool {
	s = stripSeparators(s)
	if s == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IsCardNumber reports whether s is a 13 to 19 digit number that passes Luhn.
func IsCardNumber(s string) bool {
	d := stripSeparators(s)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	return Luhn(d)
}
