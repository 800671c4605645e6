package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schemaprof/internal/schema"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ErrSnapshotNotFound is returned (wrapped) when a name or version does not
// exist. It is the same sentinel the diff engine reports as a missing version.
var ErrSnapshotNotFound = schema.ErrSnapshotNotFound

// VersionInfo describes one stored snapshot without its fields.
type VersionInfo struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Hash      string    `json:"schema_hash"`
	Records   int       `json:"records_sampled"`
	Fields    int       `json:"field_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores versioned schema snapshots under a dataset name.
//
// Versions start at 1 and grow by one per distinct schema. Saving a snapshot
// whose hash equals the latest stored version's hash stores nothing and
// returns that version.
type Repository interface {
	Save(ctx context.Context, name string, s schema.Snapshot) (int, error)
	Load(ctx context.Context, name string, version int) (schema.Snapshot, error)
	Latest(ctx context.Context, name string) (schema.Snapshot, error)
	Versions(ctx context.Context, name string) ([]VersionInfo, error)

	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
// Backends call it from init().
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Repository using the registered backend factory.
//
// Errors:
//   - cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
