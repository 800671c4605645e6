package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	json "github.com/goccy/go-json"
)

// shape is the part of a field that identifies the schema structurally.
type shape struct {
	Path     string `json:"p"`
	DataType string `json:"t"`
	Nullable bool   `json:"n"`
	IsArray  bool   `json:"a"`
}

// Hash fingerprints the structure of a field set.
//
// Fields are projected to (path, type, nullable, array), sorted by path and
// encoded as a JSON array before SHA-256 is applied, so the digest ignores
// field order, samples and statistics. Output is 64 lowercase hex characters.
func Hash(fields []FieldRecord) string {
	shapes := make([]shape, len(fields))
	for i, f := range fields {
		shapes[i] = shape{Path: f.Path, DataType: f.DataType, Nullable: f.IsNullable, IsArray: f.IsArray}
	}
	sort.SliceStable(shapes, func(i, j int) bool { return shapes[i].Path < shapes[j].Path })

	b, err := json.Marshal(shapes)
	if err != nil {
		// shape holds only strings and bools.
		panic("schema: marshal shapes: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
