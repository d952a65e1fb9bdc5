package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
fit:
  control_values: [100, 200, 500, 1000, 1500, 1600]
  event_counts: [1016, 10312, 1366, 788, 219, 175]
  live_times: [237586098, 6077235458, 7303274908, 55671388106, 40782411792, 51916440020]

storage:
  db_path: "` + filepath.Join(dir, "catalog.db") + `"

logging:
  level: "error"
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	return cmd.Execute()
}

func TestFitFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	out := filepath.Join(dir, "fit.json")

	require.NoError(t, run(t, "--config", cfgPath, "--output", out, "--format", "json", "fit"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded struct {
		Fit struct {
			Slope             float64 `json:"slope"`
			SlopeVariance     float64 `json:"slope_variance"`
			InterceptVariance float64 `json:"intercept_variance"`
			Points            int     `json:"points"`
		} `json:"fit"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Less(t, decoded.Fit.Slope, 0.0)
	assert.Greater(t, decoded.Fit.SlopeVariance, 0.0)
	assert.Greater(t, decoded.Fit.InterceptVariance, 0.0)
	assert.Equal(t, 6, decoded.Fit.Points)
}

func TestScanAddThenFitDataset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	controls := []string{"100", "200", "500", "1000"}
	counts := []string{"1016", "10312", "1366", "788"}
	liveTimes := []string{"237586098", "6077235458", "7303274908", "55671388106"}
	for i := range controls {
		require.NoError(t, run(t, "--config", cfgPath, "scan", "add",
			"--dataset", "threshold", "--control", controls[i],
			"--count", counts[i], "--live-time", liveTimes[i]))
	}

	list := filepath.Join(dir, "list.json")
	require.NoError(t, run(t, "--config", cfgPath, "-o", list, "-f", "json", "scan", "list", "threshold"))
	data, err := os.ReadFile(list)
	require.NoError(t, err)
	var points []struct {
		ControlValue float64 `json:"control_value"`
	}
	require.NoError(t, json.Unmarshal(data, &points))
	require.Len(t, points, 4)
	assert.Equal(t, 500.0, points[2].ControlValue)

	out := filepath.Join(dir, "fit.txt")
	require.NoError(t, run(t, "--config", cfgPath, "-o", out, "fit", "--dataset", "threshold"))
	text, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Dataset:")
	assert.Contains(t, string(text), "threshold")

	require.NoError(t, run(t, "--config", cfgPath, "scan", "rm", "threshold"))
	err = run(t, "--config", cfgPath, "-o", out, "fit", "--dataset", "threshold")
	assert.Error(t, err)
}

func TestScanAdd_MissingCount(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	err := run(t, "--config", cfgPath, "scan", "add", "--dataset", "d", "--control", "100")
	assert.Error(t, err)
}

func TestChargesFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	capture := `1000
0 0 0 0 -10000
1 0 0 0 -10000
2000
0 0 0 0 -30000
1 0 0 0 -30000
3500
0 0 0 0 -200
1 0 0 0 -300
`
	file := filepath.Join(dir, "block_770V.txt")
	require.NoError(t, os.WriteFile(file, []byte(capture), 0o644))

	out := filepath.Join(dir, "charges.json")
	require.NoError(t, run(t, "--config", cfgPath, "-o", out, "-f", "json", "charges", file))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded struct {
		Channel string `json:"channel"`
		Flagged []struct {
			EventIndex int    `json:"event_index"`
			Verdict    string `json:"verdict"`
		} `json:"flagged"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "D", decoded.Channel)
	require.Len(t, decoded.Flagged, 2)
	assert.Equal(t, 1, decoded.Flagged[0].EventIndex)
	assert.Equal(t, "above_max", decoded.Flagged[0].Verdict)
	assert.Equal(t, 2, decoded.Flagged[1].EventIndex)
	assert.Equal(t, "below_min", decoded.Flagged[1].Verdict)
}

func TestInvalidFormatFlag(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	assert.Error(t, run(t, "--config", cfgPath, "-f", "png", "fit"))
}
