package semantic

import (
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"schemaprof/internal/value"
)

// Strategy recognizes one category from a single sample value.
// Strategies are stateless and safe for concurrent use.
type Strategy interface {
	Category() Category
	// Accepts reports whether the strategy inspects fields of type k.
	Accepts(k value.Kind) bool
	// Match reports whether v looks like the category.
	Match(v any) bool
}

// stringStrategy matches string samples with fn.
type stringStrategy struct {
	cat Category
	fn  func(string) bool
}

func (s stringStrategy) Category() Category        { return s.cat }
func (s stringStrategy) Accepts(k value.Kind) bool { return k == value.String }
func (s stringStrategy) Match(v any) bool {
	str, ok := v.(string)
	return ok && s.fn(strings.TrimSpace(str))
}

// zipStrategy also inspects integer fields, where leading zeros are lost but
// five-digit codes survive.
type zipStrategy struct{}

func (zipStrategy) Category() Category { return ZipCode }
func (zipStrategy) Accepts(k value.Kind) bool {
	return k == value.String || k == value.Integer
}
func (zipStrategy) Match(v any) bool {
	switch t := v.(type) {
	case string:
		return isPostalCode(strings.TrimSpace(t))
	case int64:
		return t >= 10000 && t <= 99999
	}
	return false
}

// DefaultStrategies returns the value strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		stringStrategy{Email, isEmail},
		stringStrategy{URL, isURL},
		stringStrategy{UUID, isUUID},
		stringStrategy{Phone, isPhone},
		zipStrategy{},
		stringStrategy{Currency, isCurrency},
		stringStrategy{Date, IsDate},
		stringStrategy{IPAddress, isIP},
	}
}

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	urlRe   = regexp.MustCompile(`(?i)^(?:https?|ftp)://[^\s/?#.][^\s]*$|^www\.[^\s.]+\.[^\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9\s().\-]{5,22}[0-9]$`)

	// 3-2-4 grouping is a social security number, never a phone number.
	ssnShapeRe = regexp.MustCompile(`^[0-9]{3}-[0-9]{2}-[0-9]{4}$`)

	postalRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d{5}(?:-\d{4})?$`),                          // US
		regexp.MustCompile(`^\d{3} \d{2}$`),                               // CZ, SK, SE
		regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`),      // UK
		regexp.MustCompile(`(?i)^[ABCEGHJ-NPRSTVXY]\d[A-Z] ?\d[A-Z]\d$`), // CA
		regexp.MustCompile(`^\d{2}-\d{3}$`),                               // PL
	}

	currencyRe = regexp.MustCompile(
		`(?i)^(?:[-+]?\s?(?:[$€£¥₹]|usd|eur|gbp|czk|chf|jpy)\s?-?\d{1,3}(?:[,\s]?\d{3})*(?:[.,]\d{1,2})?` +
			`|[-+]?\d{1,3}(?:[,\s]?\d{3})*(?:[.,]\d{1,2})?\s?(?:[$€£¥₹]|usd|eur|gbp|czk|chf|jpy|kč))$`)
)

func isEmail(s string) bool { return emailRe.MatchString(s) }
func isURL(s string) bool   { return urlRe.MatchString(s) }

// isUUID accepts only the canonical 36-character form so that bare 32-digit
// hex digests are not taken for identifiers.
func isUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

// isPhone accepts 7 to 15 digits with common separators. Dates and IP
// addresses share that shape and are rejected explicitly.
func isPhone(s string) bool {
	if !phoneRe.MatchString(s) || ssnShapeRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return false
	}
	return !IsDate(s) && !isIP(s)
}

func isPostalCode(s string) bool {
	for _, re := range postalRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func isCurrency(s string) bool { return currencyRe.MatchString(s) }

func isIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// DateLayouts are the date and timestamp layouts recognized as dates.
var DateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// IsDate reports whether s parses under any of DateLayouts.
func IsDate(s string) bool {
	_, _, ok := ParseDate(s)
	return ok
}

// ParseDate returns the first layout that parses s.
func ParseDate(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || !strings.ContainsAny(s, "0123456789") {
		return time.Time{}, "", false
	}
	for _, lay := range DateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}
