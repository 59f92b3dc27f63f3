package mkm

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"emkm/domain/kinetics"
	"emkm/internal/errors"
)

// CoverageSeries is the full coverage.dat content: the header names one
// column per species (first column is time) and each series holds that
// column's values in row order.
type CoverageSeries struct {
	Columns []string
	Values  map[string][]float64
}

// Final returns the last row as a snapshot
func (s *CoverageSeries) Final() kinetics.CoverageSnapshot {
	out := make(kinetics.CoverageSnapshot, len(s.Columns))
	for _, col := range s.Columns {
		vals := s.Values[col]
		if len(vals) > 0 {
			out[col] = vals[len(vals)-1]
		}
	}
	return out
}

// ParseCoverageSeries reads a solver coverage file: first non-empty line is
// the species header, remaining lines are whitespace-separated values.
// Ragged rows are trimmed to the shorter of header and value counts.
func ParseCoverageSeries(path string) (*CoverageSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeParse, fmt.Errorf("failed to open coverage file: %w", err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var columns []string
	values := make(map[string][]float64)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if columns == nil {
			columns = fields
			continue
		}

		n := len(fields)
		if len(columns) < n {
			n = len(columns)
		}
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				log.Printf("[Coverage] could not parse value %q for column %q in %s", fields[i], columns[i], path)
				continue
			}
			values[columns[i]] = append(values[columns[i]], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithCode(errors.CodeParse, err)
	}

	if columns == nil || len(values) == 0 {
		return nil, errors.ParseError(fmt.Sprintf("coverage file %s is empty or incomplete", path))
	}

	return &CoverageSeries{Columns: columns, Values: values}, nil
}

// ParseFinalCoverage reads only the final surface state from a coverage file
func ParseFinalCoverage(path string) (kinetics.CoverageSnapshot, error) {
	series, err := ParseCoverageSeries(path)
	if err != nil {
		return nil, err
	}
	return series.Final(), nil
}
