// Package schema holds the finished, immutable products of a profiling pass.
package schema

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"schemaprof/internal/value"
)

// FieldRecord is the complete profile of one field. Records are built once by
// the profiler and never modified afterwards.
type FieldRecord struct {
	Path           string      `json:"field_path"`
	Name           string      `json:"field_name"`
	Level          int         `json:"nesting_level"`
	TypesSeen      value.Tally `json:"types_seen"`
	NullCount      int         `json:"null_count"`
	TotalCount     int         `json:"total_count"`
	Samples        []any       `json:"sample_values"`
	IsArray        bool        `json:"is_array"`
	ArrayItemTypes value.Tally `json:"array_item_types"`
	DepthTruncated bool        `json:"depth_truncated,omitempty"`

	DataType            string  `json:"data_type"`
	TypeConfidence      float64 `json:"type_confidence"`
	ArrayItemType       string  `json:"array_item_type,omitempty"`
	ArrayItemConfidence float64 `json:"array_item_confidence,omitempty"`
	IsNullable          bool    `json:"is_nullable"`
	SemanticType        string  `json:"semantic_type,omitempty"`
	IsPII               bool    `json:"is_pii"`
	PIIType             string  `json:"pii_type,omitempty"`

	NullPercentage   float64  `json:"null_percentage"`
	DistinctCount    int      `json:"distinct_count"`
	CardinalityRatio float64  `json:"cardinality_ratio"`
	Min              *float64 `json:"min_value,omitempty"`
	Max              *float64 `json:"max_value,omitempty"`
	Mean             *float64 `json:"mean_value,omitempty"`
	Median           *float64 `json:"median_value,omitempty"`
	StdDev           *float64 `json:"std_dev,omitempty"`
	Percentile25     *float64 `json:"percentile_25,omitempty"`
	Percentile50     *float64 `json:"percentile_50,omitempty"`
	Percentile75     *float64 `json:"percentile_75,omitempty"`

	Description  string `json:"description,omitempty"`
	BusinessName string `json:"business_name,omitempty"`

	// Degraded names sub-results that were omitted because computing them
	// failed.
	Degraded []string `json:"degraded,omitempty"`
}

// IsNumeric reports whether the field's primary type is integer or float.
func (f FieldRecord) IsNumeric() bool {
	return f.DataType == value.Integer.String() || f.DataType == value.Float.String()
}

// Snapshot is one profiled version of a dataset's schema.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Version   int       `json:"version,omitempty"`
	Source    string    `json:"source,omitempty"`
	Format    string    `json:"format,omitempty"`
	Records   int       `json:"records_sampled"`
	CreatedAt time.Time `json:"created_at"`
	Hash      string    `json:"schema_hash"`

	// Fields are in first-seen order.
	Fields []FieldRecord `json:"fields"`
}

// NewSnapshot wraps fields in a Snapshot with a fresh id and its hash.
func NewSnapshot(fields []FieldRecord) Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Hash:      Hash(fields),
		Fields:    fields,
	}
}

// Field returns the record at path.
func (s Snapshot) Field(path string) (FieldRecord, bool) {
	for _, f := range s.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return FieldRecord{}, false
}

// ErrSnapshotNotFound is returned by snapshot stores and loaders when the
// requested name or version does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")
