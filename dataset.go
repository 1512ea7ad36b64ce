package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	defaultGroupColumn = "Species"
	defaultValueColumn = "PetalLength"
)

type columnSpec struct {
	Group string
	Value string
}

func loadObservationsFile(path string, cols columnSpec) ([]Observation[string], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readObservations(f, cols)
}

// readObservations reads a header-led CSV and coerces the value column to
// float64. Blank lines are skipped by encoding/csv.
func readObservations(r io.Reader, cols columnSpec) ([]Observation[string], error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	groupIdx, err := columnIndex(header, cols.Group)
	if err != nil {
		return nil, err
	}
	valueIdx, err := columnIndex(header, cols.Value)
	if err != nil {
		return nil, err
	}

	out := make([]Observation[string], 0, 64)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		raw := strings.TrimSpace(record[valueIdx])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", line, cols.Value, err)
		}
		out = append(out, Observation[string]{Group: strings.TrimSpace(record[groupIdx]), Value: v})
	}
	return out, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found in header %v", name, header)
}
