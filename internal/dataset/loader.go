// Package dataset loads strictly validated numeric CSV model input.
//
// Files follow the QUOTE_NONNUMERIC convention: every unquoted value must be
// a number, and only non-numeric values are quoted. Header rows are removed
// by trimming a fixed number of leading lines.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

const maxLineBytes = 1 << 20

// Dataset is a validated sequence of input rows.
type Dataset struct {
	Fields []string
	Rows   []domain.InputRow
}

// cell is one tokenized CSV value. Quoted cells are strings; unquoted
// non-empty cells are numbers.
type cell struct {
	text   string
	quoted bool
	num    float64
}

func (c cell) isString() bool { return c.quoted || c.text == "" }

// LoadFile opens path and loads it with Load.
func LoadFile(path string, fields []string, trim int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ds, err := Load(f, fields, trim)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Load skips trim leading lines and reads the remaining rows, keeping the
// first len(fields) values of each. The first row decides whether enough
// header lines were trimmed; every row after it must be fully numeric.
func Load(r io.Reader, fields []string, trim int) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for line < trim {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read input: %w", err)
			}
			return nil, &domain.NoDataError{Trim: trim}
		}
		line++
	}

	n := len(fields)
	ds := &Dataset{Fields: fields}
	first := true

	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		cells, err := tokenize(text, line)
		if err != nil {
			return nil, err
		}

		if first {
			if err := checkFirstRow(cells, n, line); err != nil {
				return nil, err
			}
			first = false
		} else if err := checkRow(cells, n, line); err != nil {
			return nil, err
		}

		values := make([]float64, n)
		for i := range n {
			values[i] = cells[i].num
		}
		ds.Rows = append(ds.Rows, domain.InputRow{Line: line, Fields: fields, Values: values})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if first {
		return nil, &domain.NoDataError{Trim: trim}
	}
	return ds, nil
}

func checkFirstRow(cells []cell, n, line int) error {
	if len(cells) < n {
		return &domain.NotEnoughColumnsError{Row: line, Got: len(cells), Expected: n}
	}
	for _, c := range cells[:n] {
		if c.quoted && c.text != "" {
			return &domain.NotEnoughTrimError{Row: line}
		}
	}
	for i, c := range cells[:n] {
		if c.isString() {
			return &domain.InvalidDataError{Row: line, Col: i + 1}
		}
	}
	return nil
}

func checkRow(cells []cell, n, line int) error {
	for i := range n {
		if i >= len(cells) || cells[i].isString() {
			return &domain.InvalidDataError{Row: line, Col: i + 1}
		}
	}
	return nil
}

var errUnterminatedQuote = errors.New("unterminated quoted field")

// tokenize splits one line into cells, tracking which were quoted and
// converting unquoted values to numbers.
func tokenize(line string, row int) ([]cell, error) {
	var (
		cells []cell
		i     int
	)
	for {
		var c cell
		if i < len(line) && line[i] == '"' {
			var b strings.Builder
			i++
			closed := false
			for i < len(line) {
				if line[i] == '"' {
					if i+1 < len(line) && line[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(line[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("row %d: %w", row, errUnterminatedQuote)
			}
			if i < len(line) && line[i] != ',' {
				end := strings.IndexByte(line[i:], ',')
				if end < 0 {
					end = len(line) - i
				}
				return nil, &domain.UnquotedStringError{Row: row, Value: line[i : i+end]}
			}
			c = cell{text: b.String(), quoted: true, num: math.NaN()}
		} else {
			end := strings.IndexByte(line[i:], ',')
			if end < 0 {
				end = len(line) - i
			}
			raw := line[i : i+end]
			i += end
			c = cell{text: raw, num: math.NaN()}
			if raw != "" {
				v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
				if err != nil {
					return nil, &domain.UnquotedStringError{Row: row, Value: raw}
				}
				c.num = v
			}
		}
		cells = append(cells, c)

		if i >= len(line) {
			return cells, nil
		}
		i++ // delimiter
		if i == len(line) {
			return append(cells, cell{num: math.NaN()}), nil
		}
	}
}
