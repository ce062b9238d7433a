package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads one sample per row with the direction target in the last
// column. A header row is skipped when its first cell is not numeric.
func LoadCSV(path string, reducedWidth int) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	return ReadCSV(f, reducedWidth)
}

func ReadCSV(r io.Reader, reducedWidth int) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, err
	}
	if len(records) > 0 && len(records[0]) > 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
			records = records[1:]
		}
	}
	if len(records) == 0 {
		return Dataset{}, ErrEmpty
	}

	width := len(records[0]) - 1
	if width < 1 {
		return Dataset{}, fmt.Errorf("%w: csv rows need at least one feature and a target", ErrShape)
	}
	inputs := mat.NewDense(width, len(records), nil)
	targets := make([]float64, len(records))
	for j, record := range records {
		if len(record) != width+1 {
			return Dataset{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, j+1, len(record), width+1)
		}
		for i, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("row %d column %d: %w", j+1, i+1, err)
			}
			if i == width {
				targets[j] = v
				continue
			}
			inputs.Set(i, j, v)
		}
	}
	if reducedWidth <= 0 || reducedWidth > width {
		reducedWidth = width
	}
	return New(inputs, targets, reducedWidth)
}
