package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_MODE", "production")
	var out bytes.Buffer
	cmd := (&app{}).rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummarizeCommandIris(t *testing.T) {
	out, err := runCLI(t, "summarize", "testdata/iris.csv", "--format", "json")
	require.NoError(t, err)

	var rep Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, "Species", rep.GroupColumn)
	require.Equal(t, "PetalLength", rep.ValueColumn)
	require.InDelta(t, 0.8, rep.Domain[0], 1e-9)
	require.InDelta(t, 7.1, rep.Domain[1], 1e-9)
	require.Len(t, rep.Groups, 3)

	setosa := rep.Groups[0]
	require.Equal(t, "setosa", setosa.Group)
	require.Equal(t, 10, setosa.Count)
	require.InDelta(t, 1.4, setosa.Q1, 1e-9)
	require.InDelta(t, 1.4, setosa.Median, 1e-9)
	require.InDelta(t, 1.5, setosa.Q3, 1e-9)
	require.InDelta(t, 1.65, setosa.UpperBound, 1e-9)
	require.Equal(t, []float64{1.7}, setosa.Outliers)
	require.Equal(t, 1.3, setosa.WhiskerLow)
	require.Equal(t, 1.5, setosa.WhiskerHigh)

	virginica := rep.Groups[2]
	require.Equal(t, "virginica", virginica.Group)
	require.InDelta(t, 5.65, virginica.Q1, 1e-9)
	require.InDelta(t, 5.85, virginica.Median, 1e-9)
	require.InDelta(t, 6.075, virginica.Q3, 1e-9)
	require.InDelta(t, 5.0125, virginica.LowerBound, 1e-9)
	require.Equal(t, []float64{4.5}, virginica.Outliers)
	require.Equal(t, 5.1, virginica.WhiskerLow)
}

func TestSummarizeCommandValueColumn(t *testing.T) {
	out, err := runCLI(t, "summarize", "testdata/iris.csv", "--value-column", "PetalWidth", "-f", "table")
	require.NoError(t, err)
	require.Contains(t, out, "PetalWidth by Species")
	require.Contains(t, out, "versicolor")
}

func TestSummarizeCommandErrors(t *testing.T) {
	_, err := runCLI(t, "summarize", "testdata/missing.csv")
	require.Error(t, err)

	_, err = runCLI(t, "summarize", "testdata/iris.csv", "--value-column", "Species")
	require.Error(t, err)

	_, err = runCLI(t, "summarize")
	require.Error(t, err)
}

func TestParseDatasetID(t *testing.T) {
	id, err := parseDatasetID("12")
	require.NoError(t, err)
	require.Equal(t, int64(12), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseDatasetID(bad)
		require.Error(t, err, bad)
	}
}

func TestOpenStoreUsesResolvedSettings(t *testing.T) {
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("DATABASE_URL", "")
	v, err := readSettings("")
	require.NoError(t, err)

	// The config file no longer exists; only the settings read at startup count.
	a := &app{configFile: "testdata/removed.yaml", settings: v, cfg: loadConfig(v)}
	_, _, err = a.openStore(context.Background())
	require.ErrorContains(t, err, "database config error")
	require.NotContains(t, err.Error(), "read config")
}
