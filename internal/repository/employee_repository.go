package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/repository/builder"
)

var employeeColumns = []string{
	"id", "agency", "name", "job_title", "original_hire_date", "year",
	"salary", "overtime", "total_annual_amount",
}

type employeeRepository struct {
	db *sql.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository
func NewEmployeeRepository(db *sql.DB) domain.EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employee").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count employees: %w", err)
	}
	return count, nil
}

func (r *employeeRepository) Insert(ctx context.Context, e *domain.Employee) error {
	query, args := builder.NewSQLBuilder().
		Insert("employee", employeeColumns[1:]...).
		Values(e.Agency, e.Name, e.JobTitle, e.OriginalHireDate, e.Year, e.Salary, e.Overtime, e.TotalAnnualAmount).
		Returning("id").
		Build()

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("failed to insert employee %q: %w", e.Name, err)
	}
	return nil
}

// GetByID returns nil without error when the employee does not exist.
func (r *employeeRepository) GetByID(ctx context.Context, id int64) (*domain.Employee, error) {
	query, args := builder.NewSQLBuilder().
		Select(employeeColumns...).
		From("employee").
		Where("id = ?", id).
		Build()

	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee %d: %w", id, err)
	}
	return e, nil
}

func (r *employeeRepository) List(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	query, args := builder.NewSQLBuilder().
		Select(employeeColumns...).
		From("employee").
		WhereIf(filter.Name != "", "name ILIKE ?", likePattern(filter.Name)).
		WhereIf(filter.Agency != "", "agency ILIKE ?", likePattern(filter.Agency)).
		WhereIf(filter.JobTitle != "", "job_title ILIKE ?", likePattern(filter.JobTitle)).
		WhereIf(filter.Year != 0, "year = ?", filter.Year).
		OrderBy("id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []domain.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return employees, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(&e.ID, &e.Agency, &e.Name, &e.JobTitle, &e.OriginalHireDate, &e.Year,
		&e.Salary, &e.Overtime, &e.TotalAnnualAmount)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
