package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaprof/internal/diff"
	"schemaprof/internal/schema"
	"schemaprof/internal/storage"
	"schemaprof/internal/value"
)

func openTemp(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.Open(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "snapshots.db"),
	})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func snapshot(fields ...schema.FieldRecord) schema.Snapshot {
	s := schema.NewSnapshot(fields)
	s.Source = "people.json"
	s.Format = "json"
	s.Records = 2
	return s
}

func intField(path string, nullable bool) schema.FieldRecord {
	var tally value.Tally
	tally.Add(value.Integer)
	return schema.FieldRecord{
		Path:       path,
		Name:       path,
		DataType:   "integer",
		IsNullable: nullable,
		TypesSeen:  tally,
		TotalCount: 1,
		Samples:    []any{int64(42)},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTemp(t)

	in := snapshot(intField("age", false), intField("score", true))
	v, err := repo.Save(ctx, "people", in)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	got, err := repo.Load(ctx, "people", 1)
	require.NoError(t, err)
	assert.Equal(t, "people", got.Name)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Hash, got.Hash)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "age", got.Fields[0].Path)
	assert.Equal(t, []any{int64(42)}, got.Fields[0].Samples)
	assert.Equal(t, 1, got.Fields[0].TypesSeen[value.Integer])
	assert.Equal(t, schema.Hash(got.Fields), got.Hash)
}

func TestSaveSameHashKeepsVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTemp(t)

	v1, err := repo.Save(ctx, "people", snapshot(intField("age", false)))
	require.NoError(t, err)
	again, err := repo.Save(ctx, "people", snapshot(intField("age", false)))
	require.NoError(t, err)
	assert.Equal(t, v1, again)

	v2, err := repo.Save(ctx, "people", snapshot(intField("age", true)))
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	versions, err := repo.Versions(ctx, "people")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
	assert.Equal(t, 1, versions[1].Fields)
	assert.False(t, versions[1].CreatedAt.IsZero())

	latest, err := repo.Latest(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestNamesAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTemp(t)

	_, err := repo.Save(ctx, "a", snapshot(intField("x", false)))
	require.NoError(t, err)
	v, err := repo.Save(ctx, "b", snapshot(intField("y", false)))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMissingSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTemp(t)

	_, err := repo.Load(ctx, "nobody", 1)
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound), "Load: %v", err)

	_, err = repo.Latest(ctx, "nobody")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound), "Latest: %v", err)

	_, err = repo.Versions(ctx, "nobody")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound), "Versions: %v", err)

	_, err = repo.Save(ctx, " ", snapshot())
	assert.Error(t, err)
}

func TestCompareStoredVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTemp(t)

	_, err := repo.Save(ctx, "people", snapshot(intField("age", true), intField("legacy_id", false)))
	require.NoError(t, err)
	str := intField("age", true)
	str.DataType = "string"
	_, err = repo.Save(ctx, "people", snapshot(str))
	require.NoError(t, err)

	res, err := diff.CompareVersions(ctx, repo, "people", 1, 2, diff.Policy{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.FieldsModified)
	assert.Equal(t, 1, res.Summary.FieldsRemoved)
	assert.Equal(t, 2, res.Summary.BreakingChanges)

	_, err = diff.CompareVersions(ctx, repo, "people", 1, 9, diff.Policy{})
	assert.True(t, errors.Is(err, diff.ErrVersionNotFound))
}

func TestInMemoryDSN(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, err := New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer repo.Close()

	v, err := repo.Save(ctx, "m", snapshot(intField("a", false)))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = repo.Load(ctx, "m", 1)
	require.NoError(t, err)
}
