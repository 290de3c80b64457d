package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/locvowork/public_salaries/internal/domain"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

var (
	ErrMissingAgency = errors.New("agency is empty")
	ErrMissingName   = errors.New("employee name is empty")
)

// parseCurrency strips currency formatting ("$50,000.00") and parses the rest.
// Blank input yields zero.
func parseCurrency(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(nonNumeric.ReplaceAllString(raw, ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d.Round(2), nil
}

// Normalize turns a raw record into an Employee ready for insertion.
// Overtime that does not parse is treated as zero, and negative overtime is clamped to zero.
func Normalize(rec Record, defaultYear int) (domain.Employee, error) {
	e := domain.Employee{
		Agency:           strings.TrimSpace(rec.Agency),
		Name:             strings.TrimSpace(rec.Employee),
		JobTitle:         strings.TrimSpace(rec.JobTitle),
		OriginalHireDate: strings.TrimSpace(rec.OriginalHireDate),
		Year:             defaultYear,
	}
	if e.Agency == "" {
		return domain.Employee{}, ErrMissingAgency
	}
	if e.Name == "" {
		return domain.Employee{}, ErrMissingName
	}

	salary, err := parseCurrency(rec.Salary)
	if err != nil {
		return domain.Employee{}, fmt.Errorf("salary: %w", err)
	}

	overtime, err := parseCurrency(rec.Overtime)
	if err != nil || overtime.IsNegative() {
		overtime = decimal.Zero
	}

	if y := strings.TrimSpace(rec.Year); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return domain.Employee{}, fmt.Errorf("invalid year %q: %w", y, err)
		}
		e.Year = year
	}

	e.Salary = salary
	e.Overtime = overtime
	e.TotalAnnualAmount = salary.Add(overtime)
	return e, nil
}
