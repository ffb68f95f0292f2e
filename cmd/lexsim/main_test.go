package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/lexsim/pkg/cache"
	"github.com/Mindburn-Labs/lexsim/pkg/config"
	"github.com/Mindburn-Labs/lexsim/pkg/engine"
	"github.com/Mindburn-Labs/lexsim/pkg/logging"
	"github.com/Mindburn-Labs/lexsim/pkg/report"
	"github.com/Mindburn-Labs/lexsim/pkg/scenario"
)

const testScenario = `name: pension-credit
start: 2024-01-01
end: 2024-06-30
step: month
statutes:
  - id: pension-credit
    version: 1.0.0
    condition: entity.age >= 66
    effect: {kind: grant}
    amendments:
      - date: 2024-04-01
        version: 1.1.0
        condition: entity.age >= 65
population:
  agents:
    - id: p1
      attributes: {age: 65, income: 9000}
    - id: p2
      attributes: {age: 70, income: 14000}
    - id: p3
      attributes: {age: 40, income: 30000}
events:
  - {kind: attribute_change, date: 2024-03-01, agent: p3, key: age, value: 66}
`

const testStatute = `id: winter-fuel
version: 1.0.0
condition: entity.age >= 60
discretion: entity.income > 12000
effect: {kind: grant}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--log-level", "error"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version", "--json")
	require.Equal(t, 0, code)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, version, v["version"])
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	code, out, _ := run(t, "validate", writeFile(t, dir, "ok.yaml", testScenario))
	require.Equal(t, 0, code)
	require.Contains(t, out, "ok pension-credit: 1 statutes, 3 agents, 1 events, step month")

	code, _, errOut := run(t, "validate", writeFile(t, dir, "bad.yaml", "name: x\nstep: month\n"))
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "invalid scenario")
}

func TestRunText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "s.yaml", testScenario)

	code, out, errOut := run(t, "run", path, "--parallel", "2")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "=== Temporal Simulation Report ===")
	require.Contains(t, out, "pension-credit")
	require.Contains(t, out, "Run: ")
	require.Contains(t, out, "Digest: sha256:")
}

func TestRunWithTelemetryEnabled(t *testing.T) {
	if testing.Short() {
		t.Skip("flushes to an unreachable collector on shutdown")
	}
	t.Setenv("LEXSIM_OTEL_ENABLED", "true")
	t.Setenv("LEXSIM_OTEL_ENDPOINT", "127.0.0.1:1")
	path := writeFile(t, t.TempDir(), "s.yaml", testScenario)

	code, out, errOut := run(t, "run", path, "--no-cache")
	require.Equal(t, 0, code, errOut)
	require.NotContains(t, errOut, "init observability")
	require.Contains(t, out, "Digest: sha256:")
}

func TestRunArchivePublishAttest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s.yaml", testScenario)
	archive := filepath.Join(dir, "archive.db")
	t.Setenv("LEXSIM_ARTIFACT_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LEXSIM_ATTEST_SECRET", "test-secret")

	code, out, errOut := run(t, "run", path, "--json", "--archive", archive, "--publish", "--attest")
	require.Equal(t, 0, code, errOut)

	var res runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "pension-credit", res.Scenario)
	require.Equal(t, modeStandard, res.Mode)
	require.NotNil(t, res.Receipt)
	require.NotEmpty(t, res.Attestation)

	var doc report.Document
	require.NoError(t, json.Unmarshal(res.Document, &doc))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	require.Len(t, doc.Snapshots, engine.Month.StepsBetween(start, end)+1)
	require.Equal(t, "2024-06-29", doc.Snapshots[len(doc.Snapshots)-1].Date)
	_, err := report.VerifyAttestation(res.Attestation, &doc, []byte("test-secret"), res.RunID)
	require.NoError(t, err)

	blob, err := os.ReadFile(filepath.Join(dir, "data", "artifacts", res.Receipt.Document[len("sha256:"):]+".blob"))
	require.NoError(t, err)
	require.JSONEq(t, string(res.Document), string(blob))

	code, out, errOut = run(t, "runs", "--json", "--archive", archive)
	require.Equal(t, 0, code, errOut)
	var runs []runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, res.RunID, runs[0].ID)

	code, out, errOut = run(t, "runs", "show", res.RunID, "--json", "--archive", archive)
	require.Equal(t, 0, code, errOut)
	var detail runDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	require.Equal(t, res.RunID, detail.ID)
	require.Len(t, detail.Snapshots, len(doc.Snapshots))
	require.Equal(t, doc.Snapshots[0].Date, detail.Snapshots[0].Date)
	series := detail.Trends["pension-credit"]
	require.Len(t, series, len(doc.Trends["pension-credit"]))
	for i, p := range doc.Trends["pension-credit"] {
		require.Equal(t, p.Date.Format(time.DateOnly), series[i].Date.Format(time.DateOnly))
		require.InDelta(t, p.Effectiveness, series[i].Effectiveness, 1e-12)
	}

	code, out, errOut = run(t, "runs", "show", res.RunID, "--archive", archive, "--statute", "pension-credit")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "Run "+res.RunID+" (standard)")
	require.Contains(t, out, "2024-06-29")
	require.Contains(t, out, "pension-credit")

	code, _, errOut = run(t, "runs", "show", "missing-run", "--archive", archive)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "run not found")

	code, _, errOut = run(t, "runs", "show", res.RunID, "--archive", archive, "--statute", "unknown")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, `no trend for statute "unknown"`)
}

func TestRunAttestRequiresSecret(t *testing.T) {
	t.Setenv("LEXSIM_ATTEST_SECRET", "")
	path := writeFile(t, t.TempDir(), "s.yaml", testScenario)

	code, _, errOut := run(t, "run", path, "--attest")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "LEXSIM_ATTEST_SECRET")
}

func TestWhatIf(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s.yaml", testScenario)
	alt := writeFile(t, dir, "alt.yaml", testStatute)

	code, out, errOut := run(t, "whatif", path, "--statute", alt, "--from", "2024-03-01")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "=== What-if Comparison ===")
	require.Contains(t, out, "winter-fuel (new)")
	require.Contains(t, out, "Statute winter-fuel introduced from 2024-03-01")

	code, _, errOut = run(t, "whatif", path, "--statute", alt)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "from")
}

func TestWhatIfRejectsExistingStatute(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s.yaml", testScenario)
	dup := writeFile(t, dir, "dup.yaml", "id: pension-credit\nversion: 2.0.0\neffect: {kind: grant}\n")

	code, _, errOut := run(t, "whatif", path, "--statute", dup, "--from", "2024-03-01")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "already exists")
}

func TestRetro(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s.yaml", testScenario)
	alt := writeFile(t, dir, "alt.yaml", testStatute)

	code, out, errOut := run(t, "retro", path, "--statute", alt, "--from", "2024-04-01", "--json")
	require.Equal(t, 0, code, errOut)

	var res runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, modeRetroactive, res.Mode)

	var doc report.Document
	require.NoError(t, json.Unmarshal(res.Document, &doc))
	require.Equal(t, "2024-04-01", doc.Snapshots[0].Date)
	require.Contains(t, doc.Trends, "winter-fuel")
}

func TestCachedOrRunServesRepeatRuns(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	a := &app{cfg: cfg, logger: logging.Discard(), now: time.Now, cache: cache.NewMemory()}
	defer a.close()

	scen, err := scenario.Parse([]byte(testScenario))
	require.NoError(t, err)

	ctx := context.Background()
	calls := 0
	runOnce := func() (*engine.TemporalMetrics, error) {
		calls++
		eng, shutdown, err := a.build(ctx, scen, 1)
		if err != nil {
			return nil, err
		}
		defer shutdown()
		return eng.Run(ctx)
	}

	first, err := a.cachedOrRun(ctx, modeStandard, scen, false, runOnce)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := a.cachedOrRun(ctx, modeStandard, scen, false, runOnce)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, 1, calls)
	require.Equal(t, first.Report, second.Report)
	require.NotEqual(t, first.ID, second.ID)

	d1, err := first.Doc.Digest()
	require.NoError(t, err)
	d2, err := second.Doc.Digest()
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	_, err = a.cachedOrRun(ctx, modeStandard, scen, true, runOnce)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCachedOrRunWithoutRedisRunsEveryTime(t *testing.T) {
	t.Setenv("LEXSIM_CACHE_REDIS_ADDR", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	a := &app{cfg: cfg, logger: logging.Discard(), now: time.Now}
	defer a.close()

	scen, err := scenario.Parse([]byte(testScenario))
	require.NoError(t, err)

	ctx := context.Background()
	calls := 0
	runOnce := func() (*engine.TemporalMetrics, error) {
		calls++
		eng, shutdown, err := a.build(ctx, scen, 1)
		if err != nil {
			return nil, err
		}
		defer shutdown()
		return eng.Run(ctx)
	}

	for i := 0; i < 2; i++ {
		res, err := a.cachedOrRun(ctx, modeStandard, scen, false, runOnce)
		require.NoError(t, err)
		require.False(t, res.Cached)
	}
	require.Equal(t, 2, calls)
	require.Nil(t, a.cache)
}
