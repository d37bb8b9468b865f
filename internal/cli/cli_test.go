package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ictrisk/internal/assess"
	"github.com/ppiankov/ictrisk/internal/classify"
	"github.com/ppiankov/ictrisk/internal/model"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Cloud", "Acme-Cloud"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  ..  ", "report"},
		{"", "report"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, sanitizeFilename(string(long)), 100)
}

func TestReadSamples(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "samples.json",
		`[{"factors": {"criticality_factors": {"supports_critical_function": true}}, "label": "Medium"}]`)

	samples, err := readSamples(path)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, model.TierMedium, samples[0].Label)

	_, err = readSamples(writeTestFile(t, dir, "bad.json", `{`))
	assert.Error(t, err)
}

func TestNewEngine_Defaults(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Model.Store = "memory"

	e, err := newEngine(cfg, engineOptions{classifier: true})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Len(t, e.registry.Categories(), 4)
	assert.NotNil(t, e.classifier)
	assert.False(t, e.classifier.IsTrained())
}

func TestNewEngine_InvalidSchemaFile(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Risk.SchemaFile = writeTestFile(t, t.TempDir(), "schema.yaml", "categories: []\n")

	_, err := newEngine(cfg, engineOptions{})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestNewEngine_UnknownStore(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Model.Store = "redis"
	cfg.Model.Path = t.TempDir()

	_, err := newEngine(cfg, engineOptions{classifier: true})
	assert.Error(t, err)
}

func TestCommands_TrainPredictAssess(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "models")
	configPath := writeTestFile(t, dir, "config.yaml", `
model:
  store: disk
  path: `+modelDir+`
  seed: 7
log:
  level: error
`)

	metricsOut := filepath.Join(dir, "metrics.json")
	exportOut := filepath.Join(dir, "training.json")
	require.NoError(t, run(t, "--config", configPath, "train", "--samples", "200",
		"--metrics-out", metricsOut, "--export", exportOut))

	var result classify.TrainResult
	data, err := os.ReadFile(metricsOut)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, classify.TrainSuccess, result.Status)
	assert.Equal(t, 200, result.SampleCount)

	samples, err := readSamples(exportOut)
	require.NoError(t, err)
	assert.Len(t, samples, 200)

	// A second run keeps the trained model
	require.NoError(t, run(t, "--config", configPath, "train", "--samples", "200", "--metrics-out", ""))

	factors := writeTestFile(t, dir, "factors.json",
		`{"criticality_factors": {"supports_critical_function": true, "difficult_to_substitute": true}}`)
	require.NoError(t, run(t, "--config", configPath, "predict", factors, "--json"))

	request := writeTestFile(t, dir, "request.json", `{
  "id": "req-1",
  "vendor": "Acme Cloud",
  "service_details": {"service_type": "Cloud hosting", "business_impact": "High"}
}`)
	reportPath := filepath.Join(dir, "report.json")
	mdPath := filepath.Join(dir, "report.md")
	require.NoError(t, run(t, "--config", configPath, "assess", request, "--json", reportPath, "--md", mdPath))

	var a assess.Assessment
	data, err = os.ReadFile(reportPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, "req-1", a.ID)
	assert.NotNil(t, a.Prediction, "trained model is consulted")
	assert.FileExists(t, mdPath)
}

func TestCommands_Batch(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestFile(t, dir, "config.yaml", `
model:
  enabled: false
log:
  level: error
`)
	requests := writeTestFile(t, dir, "requests.jsonl", `# vendors
{"id": "a", "vendor": "Acme"}
{"id": "b", "vendor": "Beta", "manual_responses": {"criticality_factors": {"supports_critical_function": true}}}
`)
	outDir := filepath.Join(dir, "reports")
	promFile := filepath.Join(dir, "ictrisk.prom")

	require.NoError(t, run(t, "--config", configPath, "batch", requests,
		"--output-dir", outDir, "--concurrency", "2", "--metrics-file", promFile))

	assert.FileExists(t, filepath.Join(outDir, "Acme-a.json"))
	assert.FileExists(t, filepath.Join(outDir, "Beta-b.md"))
	assert.FileExists(t, promFile)

	broken := writeTestFile(t, dir, "broken.jsonl", "{not json}\n")
	assert.Error(t, run(t, "--config", configPath, "batch", broken,
		"--output-dir", outDir, "--metrics-file", ""))
}

func TestCommands_SynthHasOwnSampleCount(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestFile(t, dir, "config.yaml", "log:\n  level: error\n")
	out := filepath.Join(dir, "synth.json")

	require.NoError(t, run(t, "--config", configPath, "synth", "-n", "12", "--out", out))

	samples, err := readSamples(out)
	require.NoError(t, err)
	assert.Len(t, samples, 12)
	assert.Equal(t, 12, synthSamples)
	assert.NotEqual(t, 12, trainSamples, "train keeps its own sample count")
}
