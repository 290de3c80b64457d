package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSV header names.
const (
	colAgency           = "Agency"
	colEmployee         = "Employee"
	colJobTitle         = "Job Title"
	colOriginalHireDate = "Original Hire Date"
	colSalary           = "Annual Base Salary"
	colOvertime         = "Overtime"
	colYear             = "year"
)

var requiredColumns = []string{colAgency, colEmployee, colJobTitle, colOriginalHireDate, colSalary, colOvertime}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Record is one raw CSV row mapped by header name.
type Record struct {
	Source           string
	Line             int
	Agency           string
	Employee         string
	JobTitle         string
	OriginalHireDate string
	Salary           string
	Overtime         string
	Year             string
}

// Reader streams Records from a salaries CSV.
type Reader struct {
	csv   *csv.Reader
	index map[string]int
}

// NewReader consumes the header row and resolves column positions.
// Header matching ignores case and surrounding whitespace.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv: %w", err)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	return &Reader{csv: cr, index: index}, nil
}

// Next returns the next record, or io.EOF once the input is exhausted.
// A *csv.ParseError leaves the reader usable for the following row.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		return Record{}, err
	}
	line, _ := r.csv.FieldPos(0)

	return Record{
		Line:             line,
		Agency:           r.field(fields, colAgency),
		Employee:         r.field(fields, colEmployee),
		JobTitle:         r.field(fields, colJobTitle),
		OriginalHireDate: r.field(fields, colOriginalHireDate),
		Salary:           r.field(fields, colSalary),
		Overtime:         r.field(fields, colOvertime),
		Year:             r.field(fields, colYear),
	}, nil
}

func (r *Reader) field(fields []string, col string) string {
	i, ok := r.index[strings.ToLower(col)]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}
