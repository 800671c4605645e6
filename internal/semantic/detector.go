// Package semantic classifies fields into business-meaning categories.
//
// Value inspection runs first: each Strategy is tried in priority order and
// the first whose match fraction over the samples reaches the threshold wins.
// Otherwise the words of the field name are matched against a fragment table.
package semantic

import (
	"schemaprof/internal/names"
	"schemaprof/internal/value"
)

// Category is a semantic type. The empty Category means none.
type Category string

const (
	None      Category = ""
	Email     Category = "email"
	URL       Category = "url"
	UUID      Category = "uuid"
	Phone     Category = "phone"
	ZipCode   Category = "zip_code"
	Currency  Category = "currency"
	Date      Category = "date"
	IPAddress Category = "ip_address"
)

// DefaultThreshold is the minimum matching fraction for value inspection.
const DefaultThreshold = 0.70

// NameRule maps name fragments to a category.
type NameRule struct {
	Category Category
	// Contains fragments match a run of words in the name, see
	// names.HasFragment.
	Contains []string
	// Exact fragments must equal the normalized name.
	Exact []string
}

// DefaultNameRules is the fallback table, tried in order.
var DefaultNameRules = []NameRule{
	{Category: Email, Contains: []string{"email", "mail"}},
	{Category: URL, Contains: []string{"url", "link", "website", "homepage", "href", "uri"}},
	{Category: UUID, Contains: []string{"uuid", "guid"}},
	{Category: IPAddress, Contains: []string{"ipaddr", "ipaddress", "ipv4", "ipv6"}, Exact: []string{"ip"}},
	{Category: ZipCode, Contains: []string{"zip", "postal", "postcode", "psc"}},
	{Category: Phone, Contains: []string{"phone", "mobile", "fax", "tel"}},
	{Category: Currency, Contains: []string{"amount", "price", "cost", "salary", "revenue", "currency", "fee"}},
	{Category: Date, Contains: []string{"date", "timestamp", "birthday", "dob", "createdat", "updatedat"}},
}

// numericNameCategories are the categories a numeric field may receive from
// its name alone.
var numericNameCategories = map[Category]bool{
	ZipCode:  true,
	Phone:    true,
	Currency: true,
}

// Detector is safe for concurrent use once built.
type Detector struct {
	Threshold  float64
	Strategies []Strategy
	NameRules  []NameRule
}

// New returns a Detector with the default strategies and name table.
// A threshold outside (0, 1] means DefaultThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold, Strategies: DefaultStrategies(), NameRules: DefaultNameRules}
}

// Detect returns the semantic category of a field, or None.
//
// Only string, integer and float fields are classified. Numeric fields only
// see strategies that accept them and the numeric-capable name categories.
// An empty sample set yields None.
func (d *Detector) Detect(fieldName string, samples []any, dataType value.Kind) Category {
	switch dataType {
	case value.String, value.Integer, value.Float:
	default:
		return None
	}
	if len(samples) == 0 {
		return None
	}
	if c, _ := d.MatchValues(samples, dataType); c != None {
		return c
	}
	c := d.MatchName(fieldName)
	if dataType != value.String && !numericNameCategories[c] {
		return None
	}
	return c
}

// MatchValues runs the value strategies and returns the first category that
// clears the threshold together with its match fraction.
func (d *Detector) MatchValues(samples []any, dataType value.Kind) (Category, float64) {
	if len(samples) == 0 {
		return None, 0
	}
	for _, s := range d.Strategies {
		if !s.Accepts(dataType) {
			continue
		}
		hits := 0
		for _, v := range samples {
			if s.Match(v) {
				hits++
			}
		}
		frac := float64(hits) / float64(len(samples))
		if frac >= d.Threshold {
			return s.Category(), frac
		}
	}
	return None, 0
}

// MatchName applies the name table to a field name.
func (d *Detector) MatchName(fieldName string) Category {
	key := names.Key(fieldName)
	if key == "" {
		return None
	}
	toks := names.Tokens(fieldName)
	for _, rule := range d.NameRules {
		for _, e := range rule.Exact {
			if key == e {
				return rule.Category
			}
		}
		for _, frag := range rule.Contains {
			if names.HasFragment(toks, frag) {
				return rule.Category
			}
		}
	}
	return None
}

// IsPII reports whether c itself denotes personal data.
func (c Category) IsPII() bool {
	return c == Email || c == Phone
}
