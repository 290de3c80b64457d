package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/public_salaries/internal/domain"
)

type fakeEmployeeRepo struct {
	mu          sync.Mutex
	rows        []domain.Employee
	failNames   map[string]bool
	flaky       map[string]int
	afterInsert func(inserted int)
}

func (f *fakeEmployeeRepo) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeEmployeeRepo) Insert(_ context.Context, e *domain.Employee) error {
	f.mu.Lock()
	if f.failNames[e.Name] {
		f.mu.Unlock()
		return errors.New("constraint violation")
	}
	if f.flaky[e.Name] > 0 {
		f.flaky[e.Name]--
		f.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	e.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *e)
	n := len(f.rows)
	f.mu.Unlock()

	if f.afterInsert != nil {
		f.afterInsert(n)
	}
	return nil
}

func (f *fakeEmployeeRepo) GetByID(context.Context, int64) (*domain.Employee, error) {
	return nil, nil
}

func (f *fakeEmployeeRepo) List(_ context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filter.Offset >= len(f.rows) {
		return []domain.Employee{}, nil
	}
	end := len(f.rows)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return append([]domain.Employee{}, f.rows[filter.Offset:end]...), nil
}

type fakeAgencyRepo struct {
	employees *fakeEmployeeRepo
	rows      []domain.Agency
	calls     int
}

func (f *fakeAgencyRepo) Count(context.Context) (int64, error) { return int64(len(f.rows)), nil }
func (f *fakeAgencyRepo) GetByID(context.Context, int64) (*domain.Agency, error) {
	return nil, nil
}
func (f *fakeAgencyRepo) List(context.Context, domain.AgencyFilter) ([]domain.Agency, error) {
	return f.rows, nil
}
func (f *fakeAgencyRepo) Stats(context.Context) (domain.Stats, error) { return domain.Stats{}, nil }

func (f *fakeAgencyRepo) Aggregate(context.Context) (int64, error) {
	f.calls++
	if len(f.rows) > 0 {
		return 0, nil
	}
	f.rows = domain.AggregateAgencies(f.employees.rows)
	return int64(len(f.rows)), nil
}

type fakeIndex struct {
	batches [][]domain.Employee
}

func (f *fakeIndex) BulkIndexEmployees(_ context.Context, employees []domain.Employee) error {
	f.batches = append(f.batches, employees)
	return nil
}

func (f *fakeIndex) SearchEmployeesByName(context.Context, string, int) ([]domain.Employee, error) {
	return nil, nil
}

const loaderCSV = "Agency,Employee,Job Title,Original Hire Date,Annual Base Salary,Overtime\n" +
	"Fire,Alice,Captain,01/01/2010,$100.00,$0.00\n" +
	"Fire,Bob,Lieutenant,01/01/2012,\"$250.00\",$50.00\n" +
	"Police,Carol,Officer,01/01/2015,$1.2.3,$0.00\n" +
	"Police,Dave,Officer,01/01/2016,$300.00,-$20.00\n" +
	"Police,Erin,Officer,01/01/2017,$310.00,$0.00\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salaries.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderRun(t *testing.T) {
	employees := &fakeEmployeeRepo{failNames: map[string]bool{"Erin": true}}
	agencies := &fakeAgencyRepo{employees: employees}
	index := &fakeIndex{}
	metrics := NewMetrics(prometheus.NewRegistry())

	loader := NewLoader(employees, agencies, metrics, Options{
		CSVPaths:      []string{writeCSV(t, loaderCSV)},
		Workers:       3,
		DefaultYear:   2021,
		IndexPageSize: 2,
	}).WithIndex(index)

	res, err := loader.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, int64(5), res.Read)
	assert.Equal(t, int64(3), res.Inserted)
	assert.Equal(t, int64(2), res.Failed)
	assert.Equal(t, int64(2), res.AgenciesInserted)
	assert.Equal(t, 3, res.Indexed)
	assert.Len(t, index.batches, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsInserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsSkipped.WithLabelValues(reasonParse)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsSkipped.WithLabelValues(reasonInsert)))

	for _, e := range employees.rows {
		assert.False(t, e.Overtime.IsNegative(), "overtime of %s", e.Name)
		assert.True(t, e.TotalAnnualAmount.Equal(e.Salary.Add(e.Overtime)))
	}

	fire := agencies.rows[0]
	assert.Equal(t, "Fire", fire.Name)
	assert.Equal(t, int64(2), fire.EmployeeCount)
}

func TestLoaderRunIsIdempotentByCount(t *testing.T) {
	employees := &fakeEmployeeRepo{}
	agencies := &fakeAgencyRepo{employees: employees}
	path := writeCSV(t, loaderCSV)

	first, err := NewLoader(employees, agencies, nil, Options{CSVPaths: []string{path}, Workers: 2, DefaultYear: 2021}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4), first.Inserted)

	second, err := NewLoader(employees, agencies, nil, Options{CSVPaths: []string{path}, Workers: 2, DefaultYear: 2021}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.AgenciesInserted)
	assert.Len(t, employees.rows, 4)
	assert.Equal(t, 1, agencies.calls)
}

func TestLoaderRunDoesNotAggregatePartialBatch(t *testing.T) {
	employees := &fakeEmployeeRepo{}
	agencies := &fakeAgencyRepo{employees: employees}
	body := "Agency,Employee,Job Title,Original Hire Date,Annual Base Salary,Overtime\n" +
		"Fire,Alice,Captain,,$100.00,$0.00\n" +
		"Fire,Bob,Lieutenant,,$250.00,$50.00\n"
	opts := Options{CSVPaths: []string{writeCSV(t, body)}, Workers: 1, DefaultYear: 2021}

	// a second process starts while the first is halfway through its inserts
	var second Result
	var secondErr error
	employees.afterInsert = func(inserted int) {
		if inserted == 1 {
			second, secondErr = NewLoader(employees, agencies, nil, opts).Run(context.Background())
		}
	}

	first, err := NewLoader(employees, agencies, nil, opts).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, secondErr)

	assert.True(t, second.Skipped)
	assert.Zero(t, second.AgenciesInserted)
	assert.Equal(t, int64(2), first.Inserted)
	assert.Equal(t, int64(1), first.AgenciesInserted)
	assert.Equal(t, 1, agencies.calls)

	require.Len(t, agencies.rows, 1)
	fire := agencies.rows[0]
	assert.Equal(t, int64(2), fire.EmployeeCount)
	assert.True(t, fire.TotalPay.Equal(decimal.NewFromInt(400)))
}

func TestLoaderRunMissingFile(t *testing.T) {
	employees := &fakeEmployeeRepo{}
	loader := NewLoader(employees, &fakeAgencyRepo{employees: employees}, nil, Options{
		CSVPaths: []string{filepath.Join(t.TempDir(), "missing.csv")},
	})

	_, err := loader.Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadAll(t *testing.T) {
	employees, skipped, err := ReadAll(strings.NewReader(loaderCSV), 2021)
	require.NoError(t, err)
	assert.Len(t, employees, 4)
	assert.Equal(t, 1, skipped)

	agencies := domain.AggregateAgencies(employees)
	require.Len(t, agencies, 2)
	assert.Equal(t, "Police", agencies[1].Name)
	assert.Equal(t, int64(2), agencies[1].EmployeeCount)
}

func TestIngestMergesSources(t *testing.T) {
	employees := &fakeEmployeeRepo{}
	loader := NewLoader(employees, &fakeAgencyRepo{employees: employees}, nil, Options{Workers: 4, DefaultYear: 2021})

	y2020 := "Agency,Employee,Job Title,Original Hire Date,Annual Base Salary,Overtime,year\n" +
		"Fire,Alice,Captain,,$90.00,$0.00,2020\n"
	y2021 := "Agency,Employee,Job Title,Original Hire Date,Annual Base Salary,Overtime\n" +
		"Fire,Alice,Captain,,$100.00,$0.00\n" +
		"Fire,Bob,Lieutenant,,$120.00,$10.00\n"

	res, err := loader.Ingest(context.Background(),
		Source{Name: "2020.csv", Reader: strings.NewReader(y2020)},
		Source{Name: "2021.csv", Reader: strings.NewReader(y2021)},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Inserted)

	agencies := domain.AggregateAgencies(employees.rows)
	require.Len(t, agencies, 2)
	assert.Equal(t, 2020, agencies[0].Year)
	assert.Equal(t, int64(1), agencies[0].EmployeeCount)
	assert.Equal(t, int64(2), agencies[1].EmployeeCount)
}

func TestIngestRejectsBadHeader(t *testing.T) {
	employees := &fakeEmployeeRepo{}
	loader := NewLoader(employees, &fakeAgencyRepo{employees: employees}, nil, Options{})

	_, err := loader.Ingest(context.Background(), Source{Name: "bad.csv", Reader: strings.NewReader("Name\nx\n")})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = loader.Ingest(context.Background())
	assert.Error(t, err)
}

func TestIngestRetriesFailedInserts(t *testing.T) {
	employees := &fakeEmployeeRepo{flaky: map[string]int{"Alice": 2, "Bob": 5}}
	metrics := NewMetrics(prometheus.NewRegistry())
	loader := NewLoader(employees, &fakeAgencyRepo{employees: employees}, metrics, Options{
		Workers:       2,
		DefaultYear:   2021,
		InsertRetries: 2,
		RetryBackoff:  time.Millisecond,
	})

	body := "Agency,Employee,Job Title,Original Hire Date,Annual Base Salary,Overtime\n" +
		"Fire,Alice,Captain,,$100.00,$0.00\n" +
		"Fire,Bob,Lieutenant,,$250.00,$50.00\n"
	res, err := loader.Ingest(context.Background(), Source{Name: "a.csv", Reader: strings.NewReader(body)})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Inserted)
	assert.Equal(t, int64(1), res.Failed)
	require.Len(t, employees.rows, 1)
	assert.Equal(t, "Alice", employees.rows[0].Name)
	assert.Equal(t, 2, employees.flaky["Bob"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsSkipped.WithLabelValues(reasonInsert)))
}
