package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/repository/builder"
)

// aggregateLockKey is the pg advisory lock id serializing agency aggregation.
const aggregateLockKey int64 = 0x5a4c4152

const aggregateAgenciesSQL = `
	INSERT INTO agency (name, year, employee_count, top_salary, top_overtime, top_pay,
		median_pay, total_salary, total_overtime, total_pay)
	SELECT e.agency, e.year, COUNT(*), MAX(e.salary), MAX(e.overtime), MAX(e.total_annual_amount),
		percentile_cont(0.5) WITHIN GROUP (ORDER BY e.total_annual_amount::float8)::numeric(14,2),
		SUM(e.salary), SUM(e.overtime), SUM(e.total_annual_amount)
	FROM employee e
	GROUP BY e.agency, e.year
	ORDER BY e.agency, e.year
	ON CONFLICT (name, year) DO NOTHING
`

const agencyStatsSQL = `
	SELECT COUNT(*),
		COALESCE(SUM(employee_count), 0),
		COALESCE(SUM(total_salary), 0),
		COALESCE(SUM(total_overtime), 0),
		COALESCE(SUM(total_pay), 0)
	FROM agency
`

var agencyColumns = []string{
	"id", "name", "year", "employee_count", "top_salary", "top_overtime", "top_pay",
	"median_pay", "total_salary", "total_overtime", "total_pay",
}

// agencyRepository handles all database operations for Agency
type agencyRepository struct {
	db *sql.DB
}

// NewAgencyRepository creates a new AgencyRepository backed by db
func NewAgencyRepository(db *sql.DB) domain.AgencyRepository {
	return &agencyRepository{db: db}
}

// Count returns the total number of agency rows
func (r *agencyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agency").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count agencies: %w", err)
	}
	return count, nil
}

// GetByID retrieves an agency by ID. Returns nil without error when it does not exist.
func (r *agencyRepository) GetByID(ctx context.Context, id int64) (*domain.Agency, error) {
	query, args := builder.NewSQLBuilder().
		Select(agencyColumns...).
		From("agency").
		Where("id = ?", id).
		Build()

	a, err := scanAgency(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agency %d: %w", id, err)
	}
	return a, nil
}

// List retrieves agencies whose name contains filter.Name, optionally for one year
func (r *agencyRepository) List(ctx context.Context, filter domain.AgencyFilter) ([]domain.Agency, error) {
	query, args := builder.NewSQLBuilder().
		Select(agencyColumns...).
		From("agency").
		WhereIf(filter.Name != "", "name ILIKE ?", likePattern(filter.Name)).
		WhereIf(filter.Year != 0, "year = ?", filter.Year).
		OrderBy("name ASC").
		OrderBy("year ASC").
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agencies: %w", err)
	}
	defer rows.Close()

	agencies := []domain.Agency{}
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		agencies = append(agencies, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return agencies, nil
}

// Stats sums the agency table into the summary vector
func (r *agencyRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := r.db.QueryRowContext(ctx, agencyStatsSQL).
		Scan(&s.AgencyCount, &s.EmployeeCount, &s.TotalSalary, &s.TotalOvertime, &s.TotalPay)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to compute agency stats: %w", err)
	}
	return s, nil
}

// Aggregate populates the agency table from employee rows when it is empty.
// The count check and the insert share one transaction holding an advisory
// lock, so concurrent callers cannot both aggregate.
func (r *agencyRepository) Aggregate(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", aggregateLockKey); err != nil {
		return 0, fmt.Errorf("failed to acquire aggregation lock: %w", err)
	}

	var existing int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM agency").Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to count agencies: %w", err)
	}
	if existing > 0 {
		return 0, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, aggregateAgenciesSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate agencies: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func scanAgency(row rowScanner) (*domain.Agency, error) {
	var a domain.Agency
	err := row.Scan(&a.ID, &a.Name, &a.Year, &a.EmployeeCount, &a.TopSalary, &a.TopOvertime,
		&a.TopPay, &a.MedianPay, &a.TotalSalary, &a.TotalOvertime, &a.TotalPay)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// likePattern wraps s for a substring ILIKE match, escaping LIKE wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
