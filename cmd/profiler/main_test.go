package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is a subprocess entrypoint used by tests that need the
// real process exit code of main(). Arguments after "--" are the CLI args.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	i := 0
	for ; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
	}
	if i < len(args) {
		os.Args = append([]string{args[0]}, args[i+1:]...)
	} else {
		os.Args = []string{args[0]}
	}
	main()
	os.Exit(0)
}

// runCmd executes main() in a subprocess and returns stdout, stderr and the
// exit code.
func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err == nil {
		return outBuf.String(), errBuf.String(), 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return outBuf.String(), errBuf.String(), ee.ExitCode()
	}
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

// runInProcess runs the CLI without a subprocess.
func runInProcess(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errb bytes.Buffer
	args = append([]string{"--log-level", "error", "--metrics-backend", "none"}, args...)
	code = run(context.Background(), args, &out, &errb)
	return out.String(), errb.String(), code
}

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const usersV1 = `[
  {"id": 1, "email": "ann@example.com", "age": 31, "address": {"city": "Oslo"}},
  {"id": 2, "email": "bob@example.com", "age": 42, "address": {"city": "Bergen"}},
  {"id": 3, "email": "cy@example.com", "age": null, "address": {"city": "Tromso"}}
]`

// age removed, id becomes a string.
const usersV2 = `[
  {"id": "a1", "email": "ann@example.com", "address": {"city": "Oslo"}, "plan": "pro"},
  {"id": "a2", "email": "bob@example.com", "address": {"city": "Bergen"}, "plan": "free"}
]`

type snapshotOut struct {
	Records int    `json:"records_sampled"`
	Hash    string `json:"schema_hash"`
	Version int    `json:"version"`
	Fields  []struct {
		Path         string `json:"field_path"`
		DataType     string `json:"data_type"`
		SemanticType string `json:"semantic_type"`
		IsPII        bool   `json:"is_pii"`
		IsNullable   bool   `json:"is_nullable"`
		BusinessName string `json:"business_name"`
	} `json:"fields"`
}

func TestProfile_JSONOutput(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, t.TempDir(), "users.json", usersV1)
	stdout, stderr, code := runInProcess(t, "profile", path, "--output", "json")
	require.Equal(t, exitOK, code, "stderr:\n%s", stderr)

	var snap snapshotOut
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap), stdout)
	assert.Equal(t, 3, snap.Records)
	assert.NotEmpty(t, snap.Hash)

	paths := make([]string, 0, len(snap.Fields))
	for _, f := range snap.Fields {
		paths = append(paths, f.Path)
		switch f.Path {
		case "email":
			assert.Equal(t, "email", f.SemanticType)
			assert.True(t, f.IsPII)
			assert.Equal(t, "Email", f.BusinessName)
		case "age":
			assert.Equal(t, "integer", f.DataType)
			assert.True(t, f.IsNullable)
		}
	}
	assert.Equal(t, []string{"id", "email", "age", "address", "address.city"}, paths)
}

func TestProfile_TableOutput(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, t.TempDir(), "users.json", usersV1)
	stdout, stderr, code := runInProcess(t, "profile", path)
	require.Equal(t, exitOK, code, "stderr:\n%s", stderr)
	assert.Contains(t, stdout, "address.city")
	assert.Contains(t, stdout, "records=3 fields=5 hash=")
}

func TestProfile_FlagsOverrideExtraction(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, t.TempDir(), "users.json", usersV1)
	stdout, stderr, code := runInProcess(t, "profile", path, "-o", "json", "--max-samples", "2", "--max-depth", "0")
	require.Equal(t, exitOK, code, "stderr:\n%s", stderr)

	var snap snapshotOut
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, 2, snap.Records)
	for _, f := range snap.Fields {
		assert.NotEqual(t, "address.city", f.Path)
	}
}

func TestProfile_BadInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeTemp(t, dir, "ok.json", usersV1)
	bad := writeTemp(t, dir, "bad.json", `[{"a": 1}, {"a": `)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"profile", filepath.Join(dir, "nope.json")}, "open"},
		{"malformed json", []string{"profile", bad}, "error:"},
		{"unknown output", []string{"profile", good, "-o", "xml"}, "unknown --output"},
		{"unknown format", []string{"profile", good, "--format", "xml"}, "format"},
		{"invalid max samples", []string{"profile", good, "--max-samples", "-1"}, "max_samples"},
		{"save without storage", []string{"profile", good, "--save", "users"}, "no snapshot storage"},
		{"no args", []string{"profile"}, "accepts 1 arg"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, stderr, code := runInProcess(t, tc.args...)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr, tc.want)
		})
	}
}

func TestHash_SameShapeSameHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeTemp(t, dir, "a.json", `[{"id": 1, "name": "x"}]`)
	b := writeTemp(t, dir, "b.ndjson", "{\"name\": \"y\", \"id\": 7}\n{\"name\": \"z\", \"id\": 8}\n")
	c := writeTemp(t, dir, "c.json", `[{"id": "1", "name": "x"}]`)

	stdout, stderr, code := runInProcess(t, "hash", a, b, c)
	require.Equal(t, exitOK, code, "stderr:\n%s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	hashOf := func(line string) string { return strings.Fields(line)[0] }
	assert.Equal(t, hashOf(lines[0]), hashOf(lines[1]))
	assert.NotEqual(t, hashOf(lines[0]), hashOf(lines[2]))
	assert.True(t, strings.HasSuffix(lines[2], c))
}

func TestDiff_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1 := writeTemp(t, dir, "v1.json", usersV1)
	v2 := writeTemp(t, dir, "v2.json", usersV2)

	stdout, stderr, code := runInProcess(t, "diff", v1, v2, "-o", "json")
	require.Equal(t, exitOK, code, "stderr:\n%s", stderr)

	var res struct {
		Summary struct {
			Added    int `json:"fields_added"`
			Removed  int `json:"fields_removed"`
			Modified int `json:"fields_modified"`
			Breaking int `json:"breaking_changes"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res), stdout)
	assert.Equal(t, 1, res.Summary.Added)
	assert.Equal(t, 1, res.Summary.Removed)
	assert.Equal(t, 1, res.Summary.Modified)
	assert.Equal(t, 2, res.Summary.Breaking)
}

func TestDiff_FailOnBreaking(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1 := writeTemp(t, dir, "v1.json", usersV1)
	v2 := writeTemp(t, dir, "v2.json", usersV2)

	stdout, stderr, code := runInProcess(t, "diff", v1, v2, "--fail-on-breaking")
	assert.Equal(t, exitBreaking, code)
	assert.Contains(t, stdout, "added=1 removed=1 modified=1 breaking=2")
	assert.Contains(t, stderr, "breaking changes: 2")

	// Identical schemas never fail.
	_, stderr, code = runInProcess(t, "diff", v1, v1, "--fail-on-breaking")
	assert.Equal(t, exitOK, code, stderr)
}

func TestDiff_BadArgs(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, t.TempDir(), "v1.json", usersV1)
	_, stderr, code := runInProcess(t, "diff", path)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "diff needs two files")
}

func TestStoredVersions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1 := writeTemp(t, dir, "v1.json", usersV1)
	v2 := writeTemp(t, dir, "v2.json", usersV2)
	db := filepath.Join(dir, "snapshots.db")
	store := []string{"--storage", "sqlite", "--dsn", db}
	with := func(args ...string) []string { return append(append([]string(nil), store...), args...) }

	_, stderr, code := runInProcess(t, with("profile", v1, "--save", "users")...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "saved users version 1")

	// Same schema again reuses the version.
	stdout, stderr, code := runInProcess(t, with("profile", v1, "--save", "users", "-o", "json")...)
	require.Equal(t, exitOK, code, stderr)
	var snap snapshotOut
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, 1, snap.Version)

	_, stderr, code = runInProcess(t, with("profile", v2, "--save", "users")...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "saved users version 2")

	stdout, stderr, code = runInProcess(t, with("versions", "users", "-o", "json")...)
	require.Equal(t, exitOK, code, stderr)
	var vs []struct {
		Version int    `json:"version"`
		Hash    string `json:"schema_hash"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &vs), stdout)
	require.Len(t, vs, 2)
	assert.Equal(t, 1, vs[0].Version)
	assert.Equal(t, 2, vs[1].Version)
	assert.NotEqual(t, vs[0].Hash, vs[1].Hash)

	stdout, stderr, code = runInProcess(t, with("versions", "users")...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, vs[1].Hash)

	// Defaults to the last two versions.
	stdout, stderr, code = runInProcess(t, with("diff", "--name", "users")...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "breaking=2")

	stdout, stderr, code = runInProcess(t, with("diff", "--name", "users", "--v1", "2", "--v2", "2")...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "added=0 removed=0 modified=0 breaking=0")

	// Latest stored version against a file.
	stdout, stderr, code = runInProcess(t, with("diff", "--name", "users", v1)...)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "added=1 removed=1 modified=1 breaking=2")

	_, stderr, code = runInProcess(t, with("diff", "--name", "users", "--v1", "1", "--v2", "9")...)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "version 9")

	_, stderr, code = runInProcess(t, with("versions", "orders")...)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "error:")
}

func TestConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := writeTemp(t, dir, "users.json", usersV1)

	cfg := writeTemp(t, dir, "profiler.yaml", "max_samples: 1\ndescribe:\n  enabled: false\n")
	stdout, stderr, code := runInProcess(t, "--config", cfg, "profile", data, "-o", "json")
	require.Equal(t, exitOK, code, stderr)
	var snap snapshotOut
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, 1, snap.Records)
	for _, f := range snap.Fields {
		assert.Empty(t, f.BusinessName, f.Path)
	}

	invalid := writeTemp(t, dir, "bad.json", `{"max_samples": 0}`)
	_, stderr, code = runInProcess(t, "--config", invalid, "profile", data)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "error: max_samples")
	assert.Contains(t, stderr, "invalid configuration")
}

func TestMain_ExitCodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1 := writeTemp(t, dir, "v1.json", usersV1)
	v2 := writeTemp(t, dir, "v2.json", usersV2)

	stdout, stderr, code := runCmd(t, "--log-level", "error", "diff", v1, v2, "--fail-on-breaking")
	if code != exitBreaking {
		t.Fatalf("expected exit code %d, got %d\nstderr:\n%s\nstdout:\n%s", exitBreaking, code, stderr, stdout)
	}

	_, stderr, code = runCmd(t, "--log-level", "error", "hash")
	if code != exitFailure {
		t.Fatalf("expected exit code %d, got %d\nstderr:\n%s", exitFailure, code, stderr)
	}
	if !strings.Contains(stderr, "requires at least 1 arg") {
		t.Fatalf("expected arg error on stderr, got:\n%s", stderr)
	}
}
