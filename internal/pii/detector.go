// Package pii flags fields that carry personally identifiable information.
//
// Rules run in a fixed order and the first hit wins: a PII semantic type,
// then value patterns (social security numbers, Luhn-valid card numbers),
// then a name table over the field name and every path segment.
package pii

import (
	"regexp"
	"strconv"
	"strings"

	"schemaprof/internal/names"
	"schemaprof/internal/semantic"
)

// Type is a PII category. The empty Type means none.
type Type string

const (
	None          Type = ""
	SSN           Type = "ssn"
	CreditCard    Type = "credit_card"
	Email         Type = "email"
	Phone         Type = "phone"
	Name          Type = "name"
	Address       Type = "address"
	DateOfBirth   Type = "date_of_birth"
	Passport      Type = "passport"
	DriverLicense Type = "driver_license"
)

// DefaultThreshold is the minimum fraction of samples a value rule must match.
const DefaultThreshold = 0.70

// Input is what a Rule sees of one field.
type Input struct {
	Path     string
	Name     string
	Semantic semantic.Category
	Samples  []any
}

// Rule is one detection strategy.
type Rule interface {
	Detect(in Input) (Type, bool)
}

// Detector is safe for concurrent use once built.
type Detector struct {
	Rules []Rule
}

// New returns a Detector with the default rule chain. A threshold outside
// (0, 1] means DefaultThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{Rules: []Rule{
		SemanticRule{},
		ValueRule{Type: SSN, Threshold: threshold, Match: isSSN},
		ValueRule{Type: CreditCard, Threshold: threshold, Match: isCard},
		NameRule{Entries: DefaultNameTable},
	}}
}

// Detect classifies a field.
func (d *Detector) Detect(path, name string, sem semantic.Category, samples []any) (bool, Type) {
	in := Input{Path: path, Name: name, Semantic: sem, Samples: samples}
	for _, r := range d.Rules {
		if t, ok := r.Detect(in); ok {
			return true, t
		}
	}
	return false, None
}

// SemanticRule reports fields already classified as email or phone.
type SemanticRule struct{}

func (SemanticRule) Detect(in Input) (Type, bool) {
	switch in.Semantic {
	case semantic.Email:
		return Email, true
	case semantic.Phone:
		return Phone, true
	}
	return None, false
}

// ValueRule matches when at least Threshold of the samples satisfy Match.
type ValueRule struct {
	Type      Type
	Threshold float64
	Match     func(v any) bool
}

func (r ValueRule) Detect(in Input) (Type, bool) {
	if len(in.Samples) == 0 {
		return None, false
	}
	hits := 0
	for _, v := range in.Samples {
		if r.Match(v) {
			hits++
		}
	}
	if float64(hits)/float64(len(in.Samples)) >= r.Threshold {
		return r.Type, true
	}
	return None, false
}

var ssnRe = regexp.MustCompile(`^(\d{3})-(\d{2})-(\d{4})$`)

// isSSN matches the AAA-GG-SSSS layout, rejecting the all-zero groups and
// the 666 area that are never issued.
func isSSN(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	m := ssnRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	return m[1] != "000" && m[1] != "666" && m[2] != "00" && m[3] != "0000"
}

func isCard(v any) bool {
	switch t := v.(type) {
	case string:
		return IsCardNumber(t)
	case int64:
		return t > 0 && IsCardNumber(strconv.FormatInt(t, 10))
	}
	return false
}

// NameEntry maps name fragments to a PII type.
type NameEntry struct {
	Type     Type
	Contains []string
	Exact    []string
	// Exclude vetoes the entry when any fragment occurs in the name.
	Exclude []string
}

// DefaultNameTable is tried in order.
var DefaultNameTable = []NameEntry{
	{Type: SSN, Contains: []string{"ssn", "socialsecurity", "rodnecislo"}},
	{Type: CreditCard, Contains: []string{"creditcard", "cardnumber", "ccnumber", "cardno", "debitcard"}},
	{Type: Email, Contains: []string{"email"}},
	{Type: Phone, Contains: []string{"phone", "mobile", "cellnumber", "telefon"}},
	{Type: DateOfBirth, Contains: []string{"dateofbirth", "birthdate", "birthday", "dob", "datumnarozeni"}},
	{Type: Passport, Contains: []string{"passport"}},
	{Type: DriverLicense, Contains: []string{"driverlicense", "driverslicense", "drivinglicense", "drivinglicence", "dlnumber"}},
	{Type: Address, Contains: []string{"address", "street", "adresa"}, Exclude: []string{"ipaddress", "macaddress", "emailaddress", "ipaddr"}},
	{
		Type:     Name,
		Contains: []string{"firstname", "lastname", "fullname", "surname", "givenname", "middlename", "maidenname", "prijmeni", "jmeno"},
		Exact:    []string{"name"},
	},
}

// NameRule matches the words of the field name, then of each path segment.
type NameRule struct {
	Entries []NameEntry
}

func (r NameRule) Detect(in Input) (Type, bool) {
	words := append([][]string{names.Tokens(in.Name)}, names.SegmentTokens(in.Path)...)
	for _, toks := range words {
		if len(toks) == 0 {
			continue
		}
		if t, ok := r.match(toks); ok {
			return t, true
		}
	}
	return None, false
}

func (r NameRule) match(toks []string) (Type, bool) {
	key := strings.Join(toks, "")
	for _, e := range r.Entries {
		if excluded(toks, e.Exclude) {
			continue
		}
		for _, x := range e.Exact {
			if key == x {
				return e.Type, true
			}
		}
		for _, frag := range e.Contains {
			if names.HasFragment(toks, frag) {
				return e.Type, true
			}
		}
	}
	return None, false
}

func excluded(toks []string, frags []string) bool {
	for _, f := range frags {
		if names.HasFragment(toks, f) {
			return true
		}
	}
	return false
}
