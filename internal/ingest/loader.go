package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/logger"
	"github.com/locvowork/public_salaries/pkg/dataflow"
)

const defaultIndexPageSize = 1000

// Options configures a Loader.
type Options struct {
	// CSVPaths are ingested together; rows from all files are interleaved.
	CSVPaths      []string
	Workers       int
	DefaultYear   int
	IndexPageSize int
	// InsertRetries is how many more times a failed insert is attempted,
	// RetryBackoff apart, before the row is skipped.
	InsertRetries int
	RetryBackoff  time.Duration
}

// Source is one named CSV input.
type Source struct {
	Name   string
	Reader io.Reader
}

// Result summarizes one loader run.
type Result struct {
	// Skipped is true when the employee table was already populated.
	Skipped          bool
	Read             int64
	Inserted         int64
	Failed           int64
	AgenciesInserted int64
	Indexed          int
}

// Loader performs the one-time CSV ingestion and agency aggregation.
type Loader struct {
	employees domain.EmployeeRepository
	agencies  domain.AgencyRepository
	index     domain.EmployeeIndex
	metrics   *Metrics
	opts      Options
}

func NewLoader(employees domain.EmployeeRepository, agencies domain.AgencyRepository, metrics *Metrics, opts Options) *Loader {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.IndexPageSize < 1 {
		opts.IndexPageSize = defaultIndexPageSize
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Loader{employees: employees, agencies: agencies, metrics: metrics, opts: opts}
}

// WithIndex enables reindexing into idx after a successful ingestion.
func (l *Loader) WithIndex(idx domain.EmployeeIndex) *Loader {
	l.index = idx
	return l
}

// WithCSVPaths overrides the configured CSV locations.
func (l *Loader) WithCSVPaths(paths ...string) *Loader {
	l.opts.CSVPaths = paths
	return l
}

// HasIndex reports whether a search index is attached.
func (l *Loader) HasIndex() bool {
	return l.index != nil
}

// Aggregate fills the agency table when it is empty and returns the rows inserted.
func (l *Loader) Aggregate(ctx context.Context) (int64, error) {
	inserted, err := l.agencies.Aggregate(ctx)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		logger.InfoLog(ctx, "aggregated %d agency rows", inserted)
	} else {
		logger.InfoLog(ctx, "agency table already populated, aggregation skipped")
	}
	return inserted, nil
}

// Run ingests the configured CSV files when the employee table is empty, then
// aggregates agencies from the rows it just inserted. A populated employee
// table skips the whole run: another process may still be inserting, so
// aggregation is left to that process or to an explicit Aggregate call.
func (l *Loader) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	count, err := l.employees.Count(ctx)
	if err != nil {
		return res, err
	}
	if count > 0 {
		logger.InfoLog(ctx, "employee table has %d rows, no need to bootstrap", count)
		res.Skipped = true
		return res, nil
	}

	sources := make([]Source, 0, len(l.opts.CSVPaths))
	for _, path := range l.opts.CSVPaths {
		f, err := os.Open(path)
		if err != nil {
			return res, fmt.Errorf("failed to open csv %s: %w", path, err)
		}
		defer f.Close()
		sources = append(sources, Source{Name: path, Reader: f})
	}

	if res, err = l.Ingest(ctx, sources...); err != nil {
		return res, err
	}

	if res.AgenciesInserted, err = l.Aggregate(ctx); err != nil {
		return res, err
	}

	if l.index != nil && res.Inserted > 0 {
		n, err := l.Reindex(ctx)
		if err != nil {
			logger.ErrorLog(ctx, err, "employee reindex failed after %d documents", n)
		}
		res.Indexed = n
	}

	logger.InfoLog(ctx, "bootstrap finished in %s", time.Since(start))
	return res, nil
}

// csvRow is a normalized employee tagged with its source line.
type csvRow struct {
	source   string
	line     int
	employee domain.Employee
}

// Ingest streams every source through parse and insert stages. Sources are
// read concurrently and merged. Bad rows are logged and skipped.
func (l *Loader) Ingest(ctx context.Context, sources ...Source) (Result, error) {
	var res Result
	if len(sources) == 0 {
		return res, errors.New("no csv sources")
	}

	readers := make([]*Reader, len(sources))
	for i, src := range sources {
		r, err := NewReader(src.Reader)
		if err != nil {
			return res, fmt.Errorf("%s: %w", src.Name, err)
		}
		readers[i] = r
	}

	var read, inserted, failed int64

	streams := make([]dataflow.Stream[Record], len(sources))
	errcs := make([]<-chan error, len(sources))
	for i := range sources {
		name, reader := sources[i].Name, readers[i]
		streams[i], errcs[i] = dataflow.Generate(ctx, func(emit func(Record) bool) error {
			for {
				rec, err := reader.Next()
				if errors.Is(err, io.EOF) {
					return nil
				}
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					atomic.AddInt64(&failed, 1)
					l.metrics.RowsSkipped.WithLabelValues(reasonRead).Inc()
					logger.ErrorLog(ctx, err, "skipping unreadable line %d of %s", perr.Line, name)
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", name, err)
				}
				rec.Source = name
				atomic.AddInt64(&read, 1)
				l.metrics.RowsRead.Inc()
				if !emit(rec) {
					return nil
				}
			}
		}, dataflow.WithBufferSize(l.opts.Workers))
	}
	records := dataflow.FanIn(ctx, streams...)

	rows := dataflow.Map(ctx, records, func(rec Record) (csvRow, error) {
		e, err := Normalize(rec, l.opts.DefaultYear)
		if err != nil {
			return csvRow{}, fmt.Errorf("%s line %d: %w", rec.Source, rec.Line, err)
		}
		return csvRow{source: rec.Source, line: rec.Line, employee: e}, nil
	}, dataflow.WithBufferSize(l.opts.Workers), dataflow.WithErrorHandler(func(err error) bool {
		atomic.AddInt64(&failed, 1)
		l.metrics.RowsSkipped.WithLabelValues(reasonParse).Inc()
		logger.ErrorLog(ctx, err, "skipping malformed csv row")
		return true
	}))

	err := dataflow.ForEach(ctx, rows, func(row csvRow) error {
		if err := l.employees.Insert(ctx, &row.employee); err != nil {
			return fmt.Errorf("%s line %d: %w", row.source, row.line, err)
		}
		atomic.AddInt64(&inserted, 1)
		l.metrics.RowsInserted.Inc()
		return nil
	}, dataflow.WithWorkers(l.opts.Workers),
		dataflow.WithRetry(l.opts.InsertRetries, dataflow.ConstantBackoff(l.opts.RetryBackoff)),
		dataflow.WithErrorHandler(func(err error) bool {
			atomic.AddInt64(&failed, 1)
			l.metrics.RowsSkipped.WithLabelValues(reasonInsert).Inc()
			logger.ErrorLog(ctx, err, "skipping csv row on insert")
			return true
		}))

	res.Read = atomic.LoadInt64(&read)
	res.Inserted = atomic.LoadInt64(&inserted)
	res.Failed = atomic.LoadInt64(&failed)

	if err != nil {
		return res, fmt.Errorf("ingestion interrupted: %w", err)
	}
	for _, errc := range errcs {
		if err := <-errc; err != nil {
			return res, err
		}
	}

	logger.InfoLog(ctx, "ingested %d of %d csv rows, %d skipped", res.Inserted, res.Read, res.Failed)
	return res, nil
}

// Reindex pushes every employee row into the search index page by page.
// It returns the number of documents indexed.
func (l *Loader) Reindex(ctx context.Context) (int, error) {
	if l.index == nil {
		return 0, nil
	}

	indexed := 0
	for offset := 0; ; offset += l.opts.IndexPageSize {
		page, err := l.employees.List(ctx, domain.EmployeeFilter{Limit: l.opts.IndexPageSize, Offset: offset})
		if err != nil {
			return indexed, err
		}
		if len(page) == 0 {
			break
		}
		if err := l.index.BulkIndexEmployees(ctx, page); err != nil {
			return indexed, err
		}
		indexed += len(page)
		if len(page) < l.opts.IndexPageSize {
			break
		}
	}

	logger.InfoLog(ctx, "indexed %d employees", indexed)
	return indexed, nil
}

// ReadAll parses every row of r without touching storage. Malformed rows are
// counted in skipped.
func ReadAll(r io.Reader, defaultYear int) (employees []domain.Employee, skipped int, err error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, 0, err
	}
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return employees, skipped, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			skipped++
			continue
		}
		if err != nil {
			return employees, skipped, fmt.Errorf("failed to read csv: %w", err)
		}
		e, err := Normalize(rec, defaultYear)
		if err != nil {
			skipped++
			continue
		}
		employees = append(employees, e)
	}
}
