package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/tessera/internal/runtime"
)

// Selects the fake suite behaviour when the test binary is re-executed.
const fakeSuiteVar = "TESSERA_FAKE_SUITE"

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeSuiteVar); mode != "" {
		fakeSuite(mode)
		return
	}
	os.Exit(m.Run())
}

// Emulates the conformance suite: prints go test JSON events naming the
// image under test, then behaves according to mode.
func fakeSuite(mode string) {
	image := os.Getenv(BaseImageVar)
	fmt.Printf(`{"Action":"run","Test":"TestImage/%s"}`+"\n", image)
	fmt.Println(`{"Action":"pass","Test":"TestLogin"}`)
	fmt.Println(`{"Action":"fail","Test":"TestFederation"}`)
	fmt.Println(`{"Action":"skip","Test":"TestAdmin"}`)

	switch mode {
	case "ok":
		os.Exit(0)
	case "failures":
		fmt.Println(`{"Action":"fail","Package":"complement/tests"}`)
		os.Exit(1)
	case "crash":
		p, _ := os.FindProcess(os.Getpid())
		p.Kill()
		time.Sleep(time.Minute)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(3)
}

type fakeLoader struct {
	mu        sync.Mutex
	imported  []string
	destroyed []string
	importErr error
}

func (l *fakeLoader) ImportImage(_ context.Context, path, tag string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.importErr != nil {
		return l.importErr
	}
	l.imported = append(l.imported, tag)
	return nil
}

func (l *fakeLoader) DestroyImage(_ context.Context, tag string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.destroyed = append(l.destroyed, tag)
	return nil
}

type verifyingLoader struct {
	fakeLoader
	preflightErr error
	checked      []string
}

func (l *verifyingLoader) Preflight(_ context.Context, tag string, _ runtime.PreflightOptions) error {
	l.checked = append(l.checked, tag)
	return l.preflightErr
}

func suiteOptions(t *testing.T, mode string) Options {
	t.Helper()
	return Options{
		Image:  filepath.Join(t.TempDir(), "image.tar"),
		Suite:  []string{os.Args[0], "-test.run=^$"},
		Env:    []string{fakeSuiteVar + "=" + mode},
		Output: t.TempDir(),
		Grace:  200 * time.Millisecond,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunCompletes(t *testing.T) {
	loader := &fakeLoader{}
	opts := suiteOptions(t, "ok")
	opts.Tag = "conduit:under-test"

	report, err := New(loader, 1).Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, []State{StateIdle, StateImageLoaded, StateSuiteRunning, StateResultsCaptured, StateNormalized, StateDone}, report.Path)
	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, []string{"conduit:under-test"}, loader.imported)
	assert.Equal(t, []string{"conduit:under-test"}, loader.destroyed)

	raw := readLines(t, report.Raw)
	require.Len(t, raw, 4)
	assert.Equal(t, `{"Action":"run","Test":"TestImage/conduit:under-test"}`, raw[0])

	assert.Equal(t, []string{
		`{"Action":"fail","Test":"TestFederation"}`,
		`{"Action":"pass","Test":"TestLogin"}`,
		`{"Action":"skip","Test":"TestAdmin"}`,
	}, readLines(t, report.Results))
	assert.Equal(t, filepath.Join(opts.Output, ResultsFilename), report.Results)
}

func TestRunTreatsTestFailuresAsData(t *testing.T) {
	report, err := New(&fakeLoader{}, 1).Run(context.Background(), suiteOptions(t, "failures"))
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.ExitCode)
	assert.Equal(t, Summary{Pass: 1, Fail: 1, Skip: 1, Discarded: 2}, report.Summary)
}

func TestRunGeneratesUniqueTags(t *testing.T) {
	loader := &fakeLoader{}
	h := New(loader, 2)

	a, err := h.Run(context.Background(), suiteOptions(t, "ok"))
	require.NoError(t, err)
	b, err := h.Run(context.Background(), suiteOptions(t, "ok"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Tag, b.Tag)
	assert.True(t, strings.HasPrefix(a.Tag, defaultRepository+":"))
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunImageLoadFailure(t *testing.T) {
	loader := &fakeLoader{importErr: errors.New("unpack: no space left")}
	report, err := New(loader, 1).Run(context.Background(), suiteOptions(t, "ok"))

	require.ErrorIs(t, err, ErrImageLoadFailed)
	assert.ErrorContains(t, err, "no space left")
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateIdle, StateFailed}, report.Path)
	assert.Empty(t, report.Raw, "suite must not start")
}

func TestRunPreflight(t *testing.T) {
	loader := &verifyingLoader{}
	opts := suiteOptions(t, "ok")
	opts.Preflight = &runtime.PreflightOptions{Ports: []string{"8008/tcp"}}

	report, err := New(loader, 1).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{report.Tag}, loader.checked)
}

func TestRunPreflightFailure(t *testing.T) {
	loader := &verifyingLoader{preflightErr: runtime.ErrPreflight}
	opts := suiteOptions(t, "ok")
	opts.Preflight = &runtime.PreflightOptions{}

	report, err := New(loader, 1).Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrImageLoadFailed)
	assert.ErrorIs(t, err, runtime.ErrPreflight)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []string{report.Tag}, loader.destroyed)
}

func TestRunSuiteUnstartable(t *testing.T) {
	opts := suiteOptions(t, "ok")
	opts.Suite = []string{filepath.Join(t.TempDir(), "no-such-suite")}

	report, err := New(&fakeLoader{}, 1).Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrSuiteUnstartable)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateIdle, StateImageLoaded, StateSuiteRunning, StateFailed}, report.Path)
}

func TestRunSuiteCrash(t *testing.T) {
	report, err := New(&fakeLoader{}, 1).Run(context.Background(), suiteOptions(t, "crash"))
	require.ErrorIs(t, err, ErrSuiteCrashed)
	assert.Equal(t, StateFailed, report.State)
	assert.Len(t, readLines(t, report.Raw), 4, "output before the crash is kept")
}

func TestRunCancellationFlushesRawOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	report, err := New(&fakeLoader{}, 1).Run(ctx, suiteOptions(t, "hang"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 30*time.Second)

	assert.Equal(t, StateFailed, report.State)
	assert.NotContains(t, report.Path, StateDone)
	assert.Len(t, readLines(t, report.Raw), 4)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(report.Raw), ResultsFilename))
}

func TestRunConcurrencyGate(t *testing.T) {
	var running, peak atomic.Int32
	loader := &gateLoader{running: &running, peak: &peak}
	h := New(loader, 1)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Run(context.Background(), suiteOptions(t, "ok"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

// Tracks how many runs are between import and destroy at once.
type gateLoader struct {
	running *atomic.Int32
	peak    *atomic.Int32
}

func (l *gateLoader) ImportImage(context.Context, string, string) error {
	n := l.running.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (l *gateLoader) DestroyImage(context.Context, string) error {
	l.running.Add(-1)
	return nil
}
