package service

import (
	"context"
	"errors"
	"strings"

	"github.com/locvowork/public_salaries/internal/domain"
)

const defaultSearchSize = 50

var (
	// ErrSearchDisabled is returned by Search when no index is configured.
	ErrSearchDisabled = errors.New("employee search is not configured")
	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")
)

// EmployeeService serves read-only employee lookups.
type EmployeeService struct {
	repo  domain.EmployeeRepository
	index domain.EmployeeIndex
}

// NewEmployeeService creates a new EmployeeService. index may be nil.
func NewEmployeeService(repo domain.EmployeeRepository, index domain.EmployeeIndex) *EmployeeService {
	return &EmployeeService{repo: repo, index: index}
}

// FindByID returns nil without error when the employee does not exist.
func (s *EmployeeService) FindByID(ctx context.Context, id int64) (*domain.Employee, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *EmployeeService) FindByName(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	filter.Agency = strings.TrimSpace(filter.Agency)
	filter.JobTitle = strings.TrimSpace(filter.JobTitle)
	return s.repo.List(ctx, filter)
}

// Search runs a full-text name query against the search index.
func (s *EmployeeService) Search(ctx context.Context, q string, size int) ([]domain.Employee, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	return s.index.SearchEmployeesByName(ctx, q, size)
}
