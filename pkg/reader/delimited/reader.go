// Package delimited reads tab-delimited result files row by row with
// column lookup by header name.
package delimited

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
)

// ErrColumnNotFound is returned when a requested column is not in the header.
var ErrColumnNotFound = errors.New("column not found")

// ErrNotANumber is returned for NaN cells, which no score or mass may hold.
var ErrNotANumber = errors.New("not a number")

// Reader streams rows of a tab-delimited file. Rows shorter than the header
// are padded with empty cells; the first such row logs a warning and later
// ones are silent.
type Reader struct {
	scanner *bufio.Scanner
	columns []string
	index   map[string]int
	line    string
	row     []string
	rowNum  int
	warned  bool
	err     error
}

// NewReader creates a reader. When hasHeader is true the first line supplies
// the column names.
func NewReader(r io.Reader, hasHeader bool) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	dr := &Reader{
		scanner: scanner,
		index:   make(map[string]int),
	}

	if hasHeader {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read header: %w", err)
			}
			logging.New("delimited").Warn("no data or headers found")
			return dr, nil
		}
		dr.columns = strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		for i, name := range dr.columns {
			if _, dup := dr.index[name]; !dup {
				dr.index[name] = i
			}
		}
	}
	return dr, nil
}

// Columns returns the header names.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.columns...)
}

// FindColumn returns the index of a column, or -1.
func (r *Reader) FindColumn(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// Next advances to the next row. Returns false at end of input or on error.
func (r *Reader) Next() bool {
	if !r.scanner.Scan() {
		r.err = r.scanner.Err()
		r.row = nil
		return false
	}
	r.rowNum++
	r.line = strings.TrimRight(r.scanner.Text(), "\r")
	r.row = strings.Split(r.line, "\t")

	if len(r.row) < len(r.columns) {
		if !r.warned {
			log := logging.New("delimited")
			log.Warn("column count is less than header",
				"row", r.rowNum, "columns", len(r.row), "header", len(r.columns))
			log.Warn(r.line)
			log.Warn("suppressing warnings, other mismatches may exist")
			r.warned = true
		}
		for len(r.row) < len(r.columns) {
			r.row = append(r.row, "")
		}
	}
	return true
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Line returns the raw current row.
func (r *Reader) Line() string {
	return r.line
}

// StringAt returns the cell at index i of the current row.
func (r *Reader) StringAt(i int) (string, error) {
	if i < 0 || i >= len(r.row) {
		return "", fmt.Errorf("%w: index %d on row %d", ErrColumnNotFound, i, r.rowNum)
	}
	return r.row[i], nil
}

// String returns the named cell of the current row.
func (r *Reader) String(name string) (string, error) {
	i := r.FindColumn(name)
	if i < 0 {
		return "", fmt.Errorf("%w: '%s'", ErrColumnNotFound, name)
	}
	return r.StringAt(i)
}

// Float returns the named cell as a float. Inf and -Inf map to infinities
// and an empty cell reads as 0.
func (r *Reader) Float(name string) (float64, error) {
	s, err := r.String(name)
	if err != nil {
		return 0, err
	}
	return ParseFloat(s)
}

// Int returns the named cell as an integer. An empty cell reads as 0.
func (r *Reader) Int(name string) (int, error) {
	s, err := r.String(name)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("column '%s' row %d: %w", name, r.rowNum, err)
	}
	return v, nil
}

// Strings splits the named cell on sep, dropping empty parts.
func (r *Reader) Strings(name string, sep string) ([]string, error) {
	s, err := r.String(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

// ParseFloat parses a cell value as written by the tab writer. NaN is
// rejected with ErrNotANumber.
func ParseFloat(s string) (float64, error) {
	switch s {
	case "":
		return 0, nil
	case "Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s': %w", s, err)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("invalid number '%s': %w", s, ErrNotANumber)
	}
	return v, nil
}
