// Package describe produces human-readable captions for profiled fields.
//
// Describer is the seam for an external text-generation service. The profiler
// treats any failure as non-fatal: a field without a description is still a
// complete record.
package describe

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Input is what a Describer sees of one field.
type Input struct {
	FieldPath    string
	FieldName    string
	DataType     string
	SemanticType string
	Samples      []any
}

// Output is a caption for one field.
type Output struct {
	Description  string
	BusinessName string
}

// Describer captions a field.
type Describer interface {
	Describe(ctx context.Context, in Input) (Output, error)
}

// Func adapts a function to Describer.
type Func func(ctx context.Context, in Input) (Output, error)

func (f Func) Describe(ctx context.Context, in Input) (Output, error) { return f(ctx, in) }

// Humanizer derives captions from the field name and types alone. It never
// fails and needs no network.
type Humanizer struct{}

func (Humanizer) Describe(_ context.Context, in Input) (Output, error) {
	name := BusinessName(in.FieldName)
	kind := in.DataType
	if in.SemanticType != "" {
		kind = strings.ReplaceAll(in.SemanticType, "_", " ")
	}
	desc := name
	if kind != "" {
		desc = fmt.Sprintf("%s (%s)", name, kind)
	}
	if i := strings.LastIndexByte(in.FieldPath, '.'); i > 0 {
		desc += " within " + BusinessName(in.FieldPath[:i])
	}
	return Output{Description: desc, BusinessName: name}, nil
}

// BusinessName turns "customerEmail_address" into "Customer Email Address".
func BusinessName(s string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(splitWords(s), " "))
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(rs[i-1]) ||
			(i+1 < len(rs) && unicode.IsUpper(rs[i-1]) && unicode.IsLower(rs[i+1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// Cached memoizes another Describer in a fixed-size LRU keyed by path, type
// and semantic type. Errors are not cached.
type Cached struct {
	next  Describer
	cache *lru.Cache[string, Output]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Describer, size int) (*Cached, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, Output](size)
	if err != nil {
		return nil, fmt.Errorf("describe: cache: %w", err)
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Describe(ctx context.Context, in Input) (Output, error) {
	key := in.FieldPath + "\x1f" + in.DataType + "\x1f" + in.SemanticType
	if out, ok := c.cache.Get(key); ok {
		return out, nil
	}
	out, err := c.next.Describe(ctx, in)
	if err != nil {
		return Output{}, err
	}
	c.cache.Add(key, out)
	return out, nil
}

// Len reports the number of cached captions.
func (c *Cached) Len() int { return c.cache.Len() }
