package semantic

import (
	"testing"

	"schemaprof/internal/value"
)

func strs(ss ...string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func TestDetectByValue(t *testing.T) {
	t.Parallel()

	d := New(DefaultThreshold)
	tests := []struct {
		name    string
		field   string
		samples []any
		typ     value.Kind
		want    Category
	}{
		{"email", "contact", strs("a@b.com", "x.y+z@mail.example.org"), value.String, Email},
		{"url", "target", strs("https://example.com/a?b=1", "http://x.io", "www.example.com"), value.String, URL},
		{"uuid", "ref", strs("123e4567-e89b-12d3-a456-426614174000", "00000000-0000-0000-0000-000000000000"), value.String, UUID},
		{"md5 is not a uuid", "ref", strs("9e107d9d372bb6826bd81d3542a419d6"), value.String, None},
		{"phone", "contact", strs("+1 (555) 123-4567", "555.123.4567", "+420 777 123 456"), value.String, Phone},
		{"zip us", "code", strs("12345", "12345-6789", "90210"), value.String, ZipCode},
		{"zip cz", "code", strs("110 00", "602 00"), value.String, ZipCode},
		{"zip integer", "code", []any{int64(12345), int64(90210)}, value.Integer, ZipCode},
		{"currency", "v", strs("$1,234.56", "€ 12", "99.90 EUR", "1 234,50 Kč"), value.String, Currency},
		{"iso date not phone", "v", strs("2024-01-15", "2023-12-31"), value.String, Date},
		{"timestamps", "v", strs("2024-01-15T10:00:00Z", "15.01.2024 10:00:00", "Jan 2, 2006"), value.String, Date},
		{"ipv4 not phone", "v", strs("192.168.1.10", "10.0.0.1", "::1"), value.String, IPAddress},
		{"ssn shape not phone", "v", strs("123-45-6789", "234-56-7890"), value.String, None},
		{"plain words", "v", strs("alpha", "beta"), value.String, None},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := d.Detect(tt.field, tt.samples, tt.typ); got != tt.want {
				t.Fatalf("Detect(%q, %v, %s) = %q, want %q", tt.field, tt.samples, tt.typ, got, tt.want)
			}
		})
	}
}

func TestDetectThresholdFallsBackToName(t *testing.T) {
	t.Parallel()

	d := New(DefaultThreshold)
	samples := strs("a@b.com", "c@d.com", "not-an-email")

	if c, frac := d.MatchValues(samples, value.String); c != None {
		t.Fatalf("MatchValues = (%q, %v), want no value match at 2/3", c, frac)
	}
	if got := d.Detect("email", samples, value.String); got != Email {
		t.Fatalf("Detect(email) = %q, want email via name fallback", got)
	}
	if got := d.Detect("contact", samples, value.String); got != None {
		t.Fatalf("Detect(contact) = %q, want none", got)
	}
}

func TestDetectThresholdBoundary(t *testing.T) {
	t.Parallel()

	d := New(0.7)
	samples := strs("a@b.io", "b@b.io", "c@b.io", "d@b.io", "e@b.io", "f@b.io", "g@b.io", "x", "y", "z")
	if c, frac := d.MatchValues(samples, value.String); c != Email || frac != 0.7 {
		t.Fatalf("MatchValues = (%q, %v), want (email, 0.7)", c, frac)
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	t.Parallel()

	// "12345" is both a plausible phone fragment and a zip code; phone needs
	// seven digits so zip wins. A uuid field named "email" still reports uuid.
	d := New(DefaultThreshold)
	if got := d.Detect("id", strs("12345"), value.String); got != ZipCode {
		t.Fatalf("Detect = %q, want zip_code", got)
	}
	if got := d.Detect("email", strs("123e4567-e89b-12d3-a456-426614174000"), value.String); got != UUID {
		t.Fatalf("Detect = %q, want uuid", got)
	}
}

func TestDetectNumericFields(t *testing.T) {
	t.Parallel()

	d := New(DefaultThreshold)
	tests := []struct {
		field string
		typ   value.Kind
		want  Category
	}{
		{"unit_price", value.Float, Currency},
		{"phone_number", value.Integer, Phone},
		{"created_date", value.Integer, None},
		{"email", value.Float, None},
	}
	for _, tt := range tests {
		if got := d.Detect(tt.field, []any{int64(3)}, tt.typ); got != tt.want {
			t.Fatalf("Detect(%q, %s) = %q, want %q", tt.field, tt.typ, got, tt.want)
		}
	}
}

func TestDetectSkipsOtherTypes(t *testing.T) {
	t.Parallel()

	d := New(DefaultThreshold)
	for _, k := range []value.Kind{value.Null, value.Boolean, value.ObjectKind, value.Array} {
		if got := d.Detect("email", strs("a@b.com"), k); got != None {
			t.Fatalf("Detect(type %s) = %q, want none", k, got)
		}
	}
	if got := d.Detect("email", nil, value.String); got != None {
		t.Fatalf("Detect with no samples = %q, want none", got)
	}
}

func TestMatchName(t *testing.T) {
	t.Parallel()

	d := New(DefaultThreshold)
	tests := map[string]Category{
		"E-Mail":         Email,
		"homepage_link":  URL,
		"client_ip":      None,
		"ip":             IPAddress,
		"src_ip_address": IPAddress,
		"postal_code":    ZipCode,
		"Tel. číslo":     Phone,
		"total_cost":     Currency,
		"date_of_birth":  Date,
		"nickname":       None,
		"coffee":         None,
		"unit_fee":       Currency,
		"mailing_list":   None,
		"customerEmail":  Email,
		"emailaddress":   Email,
		"adobe_id":       None,
		"validated":      None,
		"createdAt":      Date,
		"dob":            Date,
	}
	for in, want := range tests {
		if got := d.MatchName(in); got != want {
			t.Fatalf("MatchName(%q) = %q, want %q", in, got, want)
		}
	}
}
