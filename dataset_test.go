package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const irisSample = `SepalLength,SepalWidth,PetalLength,PetalWidth,Species
5.1,3.5,1.4,0.2,setosa
4.9,3.0,1.4,0.2,setosa
7.0,3.2,4.7,1.4,versicolor
6.4,3.2,4.5,1.5,versicolor
6.3,3.3,6.0,2.5,virginica
`

func TestReadObservations(t *testing.T) {
	got, err := readObservations(strings.NewReader(irisSample), columnSpec{Group: "Species", Value: "PetalLength"})
	require.NoError(t, err)
	require.Equal(t, []Observation[string]{
		{"setosa", 1.4}, {"setosa", 1.4}, {"versicolor", 4.7}, {"versicolor", 4.5}, {"virginica", 6.0},
	}, got)
}

func TestReadObservationsColumnCaseInsensitive(t *testing.T) {
	got, err := readObservations(strings.NewReader(irisSample), columnSpec{Group: "species", Value: "petalwidth"})
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, 2.5, got[4].Value)
}

func TestReadObservationsMissingColumn(t *testing.T) {
	_, err := readObservations(strings.NewReader(irisSample), columnSpec{Group: "Species", Value: "StemLength"})
	require.ErrorContains(t, err, `"StemLength"`)
}

func TestReadObservationsBadNumber(t *testing.T) {
	in := "Species,PetalLength\nsetosa,1.4\nsetosa,n/a\n"
	_, err := readObservations(strings.NewReader(in), columnSpec{Group: "Species", Value: "PetalLength"})
	require.ErrorContains(t, err, "row 3")
}

func TestReadObservationsEmpty(t *testing.T) {
	_, err := readObservations(strings.NewReader(""), columnSpec{Group: "Species", Value: "PetalLength"})
	require.Error(t, err)

	got, err := readObservations(strings.NewReader("Species,PetalLength\n"), columnSpec{Group: "Species", Value: "PetalLength"})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLoadObservationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.csv")
	require.NoError(t, os.WriteFile(path, []byte(irisSample), 0o644))

	got, err := loadObservationsFile(path, columnSpec{Group: defaultGroupColumn, Value: defaultValueColumn})
	require.NoError(t, err)
	require.Len(t, got, 5)

	_, err = loadObservationsFile(filepath.Join(t.TempDir(), "missing.csv"), columnSpec{})
	require.Error(t, err)
}
