// Package diff computes and classifies the differences between two schema
// versions.
//
// Compare is a pure function of its inputs and needs no locking. A change is
// breaking when a field is removed, its type changes, its array status
// changes, or it stops being nullable. Additions never break consumers.
package diff

import (
	"context"
	"fmt"
	"strings"

	"schemaprof/internal/schema"
)

// ErrVersionNotFound reports a diff against a snapshot that does not exist.
var ErrVersionNotFound = schema.ErrSnapshotNotFound

// ChangeType classifies a Change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// View is the part of a field a change report carries for each version.
type View struct {
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	IsArray      bool   `json:"is_array"`
	SemanticType string `json:"semantic_type,omitempty"`
	IsPII        bool   `json:"is_pii"`
	PIIType      string `json:"pii_type,omitempty"`
}

func viewOf(f schema.FieldRecord) *View {
	return &View{
		DataType:     f.DataType,
		IsNullable:   f.IsNullable,
		IsArray:      f.IsArray,
		SemanticType: f.SemanticType,
		IsPII:        f.IsPII,
		PIIType:      f.PIIType,
	}
}

// Change is one difference between two versions.
type Change struct {
	FieldPath   string     `json:"field_path"`
	ChangeType  ChangeType `json:"change_type"`
	Version1    *View      `json:"version_1_data"`
	Version2    *View      `json:"version_2_data"`
	IsBreaking  bool       `json:"is_breaking"`
	Description string     `json:"description"`
}

// Summary aggregates a Result.
type Summary struct {
	FieldsAdded     int `json:"fields_added"`
	FieldsRemoved   int `json:"fields_removed"`
	FieldsModified  int `json:"fields_modified"`
	BreakingChanges int `json:"breaking_changes"`
}

// Result is the outcome of a comparison. Added follows the field order of the
// second version; Removed and Modified follow the first.
type Result struct {
	Added    []Change `json:"added"`
	Removed  []Change `json:"removed"`
	Modified []Change `json:"modified"`
	Summary  Summary  `json:"summary"`
}

// Changes returns every change: removed, then modified, then added.
func (r Result) Changes() []Change {
	out := make([]Change, 0, len(r.Added)+len(r.Removed)+len(r.Modified))
	out = append(out, r.Removed...)
	out = append(out, r.Modified...)
	return append(out, r.Added...)
}

// HasBreaking reports whether any change is breaking.
func (r Result) HasBreaking() bool { return r.Summary.BreakingChanges > 0 }

// Policy tunes classification.
type Policy struct {
	// SemanticChangeBreaking marks a change of semantic type alone as breaking.
	SemanticChangeBreaking bool
}

// Compare diffs two field sets.
func Compare(v1, v2 []schema.FieldRecord, p Policy) Result {
	index1 := make(map[string]int, len(v1))
	for i, f := range v1 {
		index1[f.Path] = i
	}
	index2 := make(map[string]int, len(v2))
	for i, f := range v2 {
		index2[f.Path] = i
	}

	res := Result{Added: []Change{}, Removed: []Change{}, Modified: []Change{}}

	for _, f1 := range v1 {
		j, ok := index2[f1.Path]
		if !ok {
			res.Removed = append(res.Removed, Change{
				FieldPath:   f1.Path,
				ChangeType:  Removed,
				Version1:    viewOf(f1),
				IsBreaking:  true,
				Description: fmt.Sprintf("field removed (was %s)", f1.DataType),
			})
			continue
		}
		if c, changed := compareField(f1, v2[j], p); changed {
			res.Modified = append(res.Modified, c)
		}
	}
	for _, f2 := range v2 {
		if _, ok := index1[f2.Path]; ok {
			continue
		}
		res.Added = append(res.Added, Change{
			FieldPath:   f2.Path,
			ChangeType:  Added,
			Version2:    viewOf(f2),
			Description: fmt.Sprintf("field added (%s)", f2.DataType),
		})
	}

	res.Summary = Summary{
		FieldsAdded:    len(res.Added),
		FieldsRemoved:  len(res.Removed),
		FieldsModified: len(res.Modified),
	}
	for _, c := range res.Changes() {
		if c.IsBreaking {
			res.Summary.BreakingChanges++
		}
	}
	return res
}

func compareField(f1, f2 schema.FieldRecord, p Policy) (Change, bool) {
	var parts []string
	breaking := false

	if f1.DataType != f2.DataType {
		parts = append(parts, fmt.Sprintf("data_type: %s -> %s", f1.DataType, f2.DataType))
		breaking = true
	}
	if f1.IsNullable != f2.IsNullable {
		parts = append(parts, fmt.Sprintf("is_nullable: %t -> %t", f1.IsNullable, f2.IsNullable))
		if f1.IsNullable && !f2.IsNullable {
			breaking = true
		}
	}
	if f1.IsArray != f2.IsArray {
		parts = append(parts, fmt.Sprintf("is_array: %t -> %t", f1.IsArray, f2.IsArray))
		breaking = true
	}
	if f1.SemanticType != f2.SemanticType {
		parts = append(parts, fmt.Sprintf("semantic_type: %s -> %s", orNone(f1.SemanticType), orNone(f2.SemanticType)))
		if p.SemanticChangeBreaking {
			breaking = true
		}
	}
	if len(parts) == 0 {
		return Change{}, false
	}
	return Change{
		FieldPath:   f1.Path,
		ChangeType:  Modified,
		Version1:    viewOf(f1),
		Version2:    viewOf(f2),
		IsBreaking:  breaking,
		Description: strings.Join(parts, "; "),
	}, true
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Loader fetches a stored snapshot. A missing name or version must be
// reported with an error matching ErrVersionNotFound.
type Loader interface {
	Load(ctx context.Context, name string, version int) (schema.Snapshot, error)
}

// CompareVersions loads two versions of a named schema and diffs them.
//
// Errors:
//   - a missing version yields an error matching ErrVersionNotFound
//   - other loader failures are returned wrapped
func CompareVersions(ctx context.Context, l Loader, name string, v1, v2 int, p Policy) (Result, error) {
	s1, err := l.Load(ctx, name, v1)
	if err != nil {
		return Result{}, fmt.Errorf("diff: load %s version %d: %w", name, v1, err)
	}
	s2, err := l.Load(ctx, name, v2)
	if err != nil {
		return Result{}, fmt.Errorf("diff: load %s version %d: %w", name, v2, err)
	}
	return Compare(s1.Fields, s2.Fields, p), nil
}
