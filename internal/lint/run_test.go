package lint

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/report"
	"github.com/starford/packlint/internal/storage"
	"github.com/starford/packlint/internal/testutil"
	"github.com/starford/packlint/internal/validator"
	"github.com/starford/packlint/internal/visibility"
)

// countingValidator wraps the built-in validator and counts Parse calls per file.
type countingValidator struct {
	inner validator.Validator
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newCounting() *countingValidator {
	return &countingValidator{
		inner: validator.NewBuiltin(),
		calls: make(map[string]int),
		fail:  make(map[string]bool),
	}
}

func (c *countingValidator) Supports(rel string) bool { return c.inner.Supports(rel) }

func (c *countingValidator) Parse(ctx context.Context, doc validator.Document) (*validator.Result, error) {
	c.mu.Lock()
	c.calls[doc.Rel]++
	fail := c.fail[doc.Rel]
	c.mu.Unlock()
	if fail {
		return nil, errors.New("engine crashed")
	}
	return c.inner.Parse(ctx, doc)
}

func (c *countingValidator) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingValidator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultOptions() Options {
	return Options{DetectionDepth: 1, Concurrency: 4, ReportUnresolved: true}
}

// runOnce simulates one CI process: a fresh cache over the shared state directory.
func runOnce(t *testing.T, work string, v validator.Validator, opts Options, configPath string) *report.Report {
	t.Helper()
	rep, err := runWithState(t, work, v, opts, configPath, testutil.TestState(t, work))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rep
}

func runWithState(t *testing.T, work string, v validator.Validator, opts Options, configPath string, state storage.Provider) (*report.Report, error) {
	t.Helper()
	rc := &RunContext{
		WorkDir:    work,
		ConfigPath: configPath,
		Options:    opts,
		Validator:  v,
		Cache:      testutil.TestCache(t, v),
		State:      state,
		Logger:     quietLogger(),
	}
	return Run(context.Background(), rc)
}

// faultyState fails JSON writes and renames whose target starts with a given name.
type faultyState struct {
	*storage.FS
	failWrite  string
	failRename string
}

func (f *faultyState) WriteJSON(path string, v any) error {
	if f.failWrite != "" && strings.HasPrefix(path, f.failWrite) {
		return errors.Join(apperr.ErrPersist, errors.New("disk full"))
	}
	return f.FS.WriteJSON(path, v)
}

func (f *faultyState) Rename(from, to string) error {
	if f.failRename != "" && to == f.failRename {
		return errors.Join(apperr.ErrPersist, errors.New("rename refused"))
	}
	return f.FS.Rename(from, to)
}

const (
	relA = "data/ns/function/a.mcfunction"
	relB = "data/ns/function/b.mcfunction"
)

func twoFilePack(t *testing.T) string {
	t.Helper()
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		relA: "say hello\n",
		relB: "frobnicate everything\n",
	})
	return work
}

func TestTwoFileScenario(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()

	first := runOnce(t, work, v, defaultOptions(), "")
	a, ok := first.Get("pack/" + relA)
	if !ok || !a.Passed() {
		t.Fatalf("a = %+v, want pass", a)
	}
	b, ok := first.Get("pack/" + relB)
	if !ok || b.FailCount.Error != 1 || b.FailCount.Warning != 0 {
		t.Fatalf("b = %+v, want one error", b)
	}
	if !first.Failed() {
		t.Error("first run should fail")
	}
	if got, want := first.Summary(), "Check failed (1 error, 0 warning)"; got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
	if v.total() != 2 {
		t.Errorf("first run validations = %d, want 2", v.total())
	}

	v.reset()
	second := runOnce(t, work, v, defaultOptions(), "")
	if v.total() != 0 {
		t.Errorf("second run validations = %d, want 0", v.total())
	}
	if first.String() != second.String() {
		t.Errorf("reports differ:\n%s\n---\n%s", first.String(), second.String())
	}
}

func TestChangedFileValidatedOnce(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	testutil.WriteFile(t, filepath.Join(work, "pack"), relA, "say changed\n")
	v.reset()
	rep := runOnce(t, work, v, defaultOptions(), "")

	if v.calls[relA] != 1 {
		t.Errorf("a validated %d times, want 1", v.calls[relA])
	}
	if v.calls[relB] != 0 {
		t.Errorf("b validated %d times, want 0", v.calls[relB])
	}
	if b, _ := rep.Get("pack/" + relB); b.FailCount.Error != 1 {
		t.Errorf("cached b result lost: %+v", b)
	}
}

func TestIdempotentRuns(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")
	sumPath := filepath.Join(work, ".cache", ChecksumFile)
	before, err := os.ReadFile(sumPath)
	if err != nil {
		t.Fatal(err)
	}

	r1 := runOnce(t, work, v, defaultOptions(), "")
	r2 := runOnce(t, work, v, defaultOptions(), "")
	after, _ := os.ReadFile(sumPath)
	if string(before) != string(after) {
		t.Errorf("checksum store changed:\n%s\n%s", before, after)
	}
	if r1.String() != r2.String() {
		t.Error("reports differ between idempotent runs")
	}
}

func TestDeletedFileReevaluatesReferrers(t *testing.T) {
	work := t.TempDir()
	pack := filepath.Join(work, "pack")
	testutil.WritePack(t, pack, map[string]string{
		"data/ns/function/x.mcfunction": "say x\n",
		"data/ns/function/y.mcfunction": "function ns:x\n",
	})
	v := newCounting()
	first := runOnce(t, work, v, defaultOptions(), "")
	if first.Failed() {
		t.Fatalf("unexpected failure:\n%s", first.String())
	}

	if err := os.Remove(filepath.Join(pack, "data/ns/function/x.mcfunction")); err != nil {
		t.Fatal(err)
	}
	v.reset()
	rep := runOnce(t, work, v, defaultOptions(), "")
	if v.total() != 0 {
		t.Errorf("validations = %d, want 0", v.total())
	}
	if _, ok := rep.Get("pack/data/ns/function/x.mcfunction"); ok {
		t.Error("deleted file still reported")
	}
	y, _ := rep.Get("pack/data/ns/function/y.mcfunction")
	if y.FailCount.Warning != 1 || !strings.Contains(strings.Join(y.Messages, "\n"), `Cannot find function "ns:x"`) {
		t.Errorf("y = %+v", y)
	}

	// The deleted file must be gone from the persisted checksum store.
	data, _ := os.ReadFile(filepath.Join(work, ".cache", ChecksumFile))
	if strings.Contains(string(data), "x.mcfunction") {
		t.Errorf("checksum store still lists deleted file: %s", data)
	}
}

func TestConfigChangeRevalidatesEverything(t *testing.T) {
	work := twoFilePack(t)
	cfg := testutil.WriteFile(t, work, ".packlint.yaml", "lint:\n  detection_depth: 1\n")
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), cfg)

	v.reset()
	runOnce(t, work, v, defaultOptions(), cfg)
	if v.total() != 0 {
		t.Fatalf("unchanged config revalidated %d files", v.total())
	}

	testutil.WriteFile(t, work, ".packlint.yaml", "lint:\n  detection_depth: 2\n")
	v.reset()
	runOnce(t, work, v, defaultOptions(), cfg)
	if v.total() != 2 {
		t.Errorf("validations = %d, want 2", v.total())
	}
}

func TestRegenerateRevalidatesEverything(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	opts := defaultOptions()
	opts.Regenerate = true
	v.reset()
	runOnce(t, work, v, opts, "")
	if v.total() != 2 {
		t.Errorf("validations = %d, want 2", v.total())
	}
}

func TestCorruptStateInvalidates(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	testutil.WriteFile(t, work, ".cache/"+ChecksumFile, "{broken")
	v.reset()
	rep := runOnce(t, work, v, defaultOptions(), "")
	if v.total() != 2 {
		t.Errorf("validations = %d, want 2", v.total())
	}
	if len(rep.Paths()) != 2 {
		t.Errorf("paths = %v", rep.Paths())
	}
}

func TestCorruptSnapshotInvalidates(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	testutil.WriteFile(t, work, ".cache/"+SnapshotFile, strings.Repeat("garbage ", 512))
	v.reset()
	runOnce(t, work, v, defaultOptions(), "")
	if v.total() != 2 {
		t.Errorf("validations = %d, want 2", v.total())
	}
}

func TestValidatorFailureSkipsFile(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	v.fail[relA] = true

	rep := runOnce(t, work, v, defaultOptions(), "")
	a, ok := rep.Get("pack/" + relA)
	if !ok || !a.Skipped {
		t.Fatalf("a = %+v, want skipped", a)
	}
	if b, _ := rep.Get("pack/" + relB); b.FailCount.Error != 1 {
		t.Errorf("b = %+v", b)
	}

	// The failed file is retried on the next run.
	delete(v.fail, relA)
	v.reset()
	rep = runOnce(t, work, v, defaultOptions(), "")
	if v.calls[relA] != 1 || v.calls[relB] != 0 {
		t.Errorf("calls = %v", v.calls)
	}
	if a, _ := rep.Get("pack/" + relA); !a.Passed() {
		t.Errorf("a = %+v, want pass", a)
	}
}

func TestExcludeDropsCachedFile(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	opts := defaultOptions()
	opts.Exclude = []string{"data/ns/function/b.mcfunction"}
	v.reset()
	rep := runOnce(t, work, v, opts, "")
	if _, ok := rep.Get("pack/" + relB); ok {
		t.Error("excluded file still reported")
	}
	if rep.Failed() {
		t.Errorf("run should pass without b:\n%s", rep.String())
	}
	if v.total() != 0 {
		t.Errorf("validations = %d, want 0", v.total())
	}
}

func TestDefineReport(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "pack"), map[string]string{
		"data/ns/function/api.mcfunction": "#@within ns:test/**\n#declare storage ns:shared\nsay api\n",
	})
	opts := defaultOptions()
	opts.OutputDefine = []string{"ns:test/probe"}
	opts.DefaultVisibility = visibility.Default{Mode: "private"}

	rep := runOnce(t, work, newCounting(), opts, "")
	got := strings.Join(rep.Define(), "|")
	want := "pack/data/ns/function/api.mcfunction|    storage ns:shared"
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestDiscoveryDepthLimitsRoots(t *testing.T) {
	work := t.TempDir()
	testutil.WritePack(t, filepath.Join(work, "packs", "deep"), map[string]string{relA: "say hi\n"})

	rep := runOnce(t, work, newCounting(), defaultOptions(), "")
	if len(rep.Paths()) != 0 {
		t.Errorf("depth 1 found %v", rep.Paths())
	}
	opts := defaultOptions()
	opts.DetectionDepth = 2
	rep = runOnce(t, work, newCounting(), opts, "")
	if len(rep.Paths()) != 1 {
		t.Errorf("depth 2 found %v", rep.Paths())
	}
}

func TestRunContextValidation(t *testing.T) {
	_, err := Run(context.Background(), &RunContext{})
	if err == nil {
		t.Fatal("expected error for empty run context")
	}
}

func referencePack(t *testing.T) (work, pack string) {
	t.Helper()
	work = t.TempDir()
	pack = filepath.Join(work, "pack")
	testutil.WritePack(t, pack, map[string]string{
		"data/ns/function/x.mcfunction": "say x\n",
		"data/ns/function/y.mcfunction": "function ns:x\n",
	})
	return work, pack
}

func TestFailedStagingKeepsPreviousState(t *testing.T) {
	work, pack := referencePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")
	stateDir := filepath.Join(work, ".cache")
	before := map[string][]byte{}
	for _, name := range stateFiles {
		data, err := os.ReadFile(filepath.Join(stateDir, name))
		if err != nil {
			t.Fatal(err)
		}
		before[name] = data
	}

	if err := os.Remove(filepath.Join(pack, "data/ns/function/x.mcfunction")); err != nil {
		t.Fatal(err)
	}
	faulty := &faultyState{FS: testutil.TestState(t, work), failWrite: report.ResultsFile}
	if _, err := runWithState(t, work, v, defaultOptions(), "", faulty); !errors.Is(err, apperr.ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}

	for _, name := range stateFiles {
		data, err := os.ReadFile(filepath.Join(stateDir, name))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(data) != string(before[name]) {
			t.Errorf("%s changed after a failed run", name)
		}
		if _, err := os.Stat(filepath.Join(stateDir, name+stagedSuffix)); err == nil {
			t.Errorf("%s left staged", name)
		}
	}

	// The next healthy run still sees the deletion.
	rep := runOnce(t, work, v, defaultOptions(), "")
	y, _ := rep.Get("pack/data/ns/function/y.mcfunction")
	if y.FailCount.Warning != 1 || !strings.Contains(strings.Join(y.Messages, "\n"), `Cannot find function "ns:x"`) {
		t.Errorf("y = %+v, want unresolved warning", y)
	}
}

func TestFailedCommitStartsCold(t *testing.T) {
	work := twoFilePack(t)
	v := newCounting()
	runOnce(t, work, v, defaultOptions(), "")

	testutil.WriteFile(t, filepath.Join(work, "pack"), relA, "say changed\n")
	faulty := &faultyState{FS: testutil.TestState(t, work), failRename: ChecksumFile}
	if _, err := runWithState(t, work, v, defaultOptions(), "", faulty); !errors.Is(err, apperr.ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	for _, name := range stateFiles {
		if _, err := os.Stat(filepath.Join(work, ".cache", name)); err == nil {
			t.Errorf("%s survived a failed commit", name)
		}
	}

	v.reset()
	runOnce(t, work, v, defaultOptions(), "")
	if v.total() != 2 {
		t.Errorf("validations = %d, want 2", v.total())
	}
}
