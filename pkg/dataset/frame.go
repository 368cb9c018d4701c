package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/fileio"
)

// Frame is a CSV table held in memory: a header row plus string cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

func (f Frame) Len() int {
	return len(f.Rows)
}

func (f Frame) Column(name string) (int, bool) {
	for i, col := range f.Columns {
		if col == name {
			return i, true
		}
	}
	return -1, false
}

// Values returns a copy of every cell in the named column.
func (f Frame) Values(name string) ([]string, error) {
	idx, ok := f.Column(name)
	if !ok {
		return nil, errors.NewDataInvalidError(fmt.Sprintf("column %q not found", name))
	}
	values := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Drop returns a frame without the named column. Dropping an absent column is a no-op.
func (f Frame) Drop(name string) Frame {
	idx, ok := f.Column(name)
	if !ok {
		return f
	}
	out := Frame{Columns: without(f.Columns, idx), Rows: make([][]string, len(f.Rows))}
	for i, row := range f.Rows {
		out.Rows[i] = without(row, idx)
	}
	return out
}

// WithColumn returns a frame with values appended as a new last column.
func (f Frame) WithColumn(name string, values []string) (Frame, error) {
	if len(values) != len(f.Rows) {
		return Frame{}, errors.NewDataInvalidError(fmt.Sprintf("column %q has %d values for %d rows", name, len(values), len(f.Rows)))
	}
	out := Frame{Columns: append(append([]string{}, f.Columns...), name), Rows: make([][]string, len(f.Rows))}
	for i, row := range f.Rows {
		out.Rows[i] = append(append([]string{}, row...), values[i])
	}
	return out, nil
}

// Rename returns a frame with column from renamed to to.
func (f Frame) Rename(from, to string) Frame {
	idx, ok := f.Column(from)
	if !ok {
		return f
	}
	cols := append([]string{}, f.Columns...)
	cols[idx] = to
	return Frame{Columns: cols, Rows: f.Rows}
}

// Take returns the rows at the given indices, in that order.
func (f Frame) Take(indices []int) Frame {
	out := Frame{Columns: f.Columns, Rows: make([][]string, len(indices))}
	for i, idx := range indices {
		out.Rows[i] = f.Rows[idx]
	}
	return out
}

// Matrix parses every cell of the frame as a float feature.
func (f Frame) Matrix() ([][]float64, error) {
	X := make([][]float64, len(f.Rows))
	for i, row := range f.Rows {
		X[i] = make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewDataInvalidError(fmt.Sprintf("row %d column %q: %v", i+1, f.Columns[j], err))
			}
			X[i][j] = v
		}
	}
	return X, nil
}

// Features splits the frame into a float feature matrix and integer labels from the label column.
func (f Frame) Features(label string) ([][]float64, []int, error) {
	values, err := f.Values(label)
	if err != nil {
		return nil, nil, err
	}
	y := make([]int, len(values))
	for i, v := range values {
		parsed, err := parseLabel(v)
		if err != nil {
			return nil, nil, errors.NewDataInvalidError(fmt.Sprintf("row %d label %q: %v", i+1, v, err))
		}
		y[i] = parsed
	}
	X, err := f.Drop(label).Matrix()
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

func parseLabel(v string) (int, error) {
	if i, err := strconv.Atoi(v); err == nil {
		return i, nil
	}
	// labels written by float formatting, e.g. "1.0"
	fv, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if fv != float64(int(fv)) {
		return 0, fmt.Errorf("not an integer class")
	}
	return int(fv), nil
}

func ReadCSV(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Frame{}, errors.NewDataInvalidError(fmt.Sprintf("input file %s does not exist", path))
		}
		return Frame{}, err
	}
	defer f.Close()
	return DecodeCSV(f)
}

func DecodeCSV(r io.Reader) (Frame, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return Frame{}, errors.NewDataInvalidError(fmt.Sprintf("malformed csv: %v", err))
	}
	if len(records) == 0 {
		return Frame{}, errors.NewDataInvalidError("csv has no header")
	}
	return Frame{Columns: records[0], Rows: records[1:]}, nil
}

// WriteCSV writes the frame to path, creating parent directories and replacing any existing file.
func WriteCSV(path string, frame Frame) error {
	if err := fileio.EnsureParent(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileio.DefaultFileMode)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := EncodeCSV(f, frame); err != nil {
		return err
	}
	return f.Close()
}

func EncodeCSV(w io.Writer, frame Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(frame.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(frame.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func without(s []string, idx int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...)
}
