package service

import (
	"context"
	"strings"

	"github.com/locvowork/public_salaries/internal/domain"
)

type stubEmployeeRepo struct {
	byID       map[int64]domain.Employee
	lastFilter domain.EmployeeFilter
	err        error
}

func (s *stubEmployeeRepo) Count(context.Context) (int64, error) { return int64(len(s.byID)), s.err }
func (s *stubEmployeeRepo) Insert(context.Context, *domain.Employee) error {
	return s.err
}

func (s *stubEmployeeRepo) GetByID(_ context.Context, id int64) (*domain.Employee, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *stubEmployeeRepo) List(_ context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	out := []domain.Employee{}
	for _, e := range s.byID {
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter.Name)) {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubAgencyRepo struct {
	agencies   []domain.Agency
	stats      domain.Stats
	lastFilter domain.AgencyFilter
	err        error
}

func (s *stubAgencyRepo) Count(context.Context) (int64, error) { return int64(len(s.agencies)), s.err }

func (s *stubAgencyRepo) GetByID(_ context.Context, id int64) (*domain.Agency, error) {
	for _, a := range s.agencies {
		if a.ID == id {
			return &a, s.err
		}
	}
	return nil, s.err
}

func (s *stubAgencyRepo) List(_ context.Context, filter domain.AgencyFilter) ([]domain.Agency, error) {
	s.lastFilter = filter
	return s.agencies, s.err
}

func (s *stubAgencyRepo) Stats(context.Context) (domain.Stats, error) { return s.stats, s.err }
func (s *stubAgencyRepo) Aggregate(context.Context) (int64, error)    { return 0, s.err }

type stubIndex struct {
	query string
	size  int
	hits  []domain.Employee
}

func (s *stubIndex) BulkIndexEmployees(context.Context, []domain.Employee) error { return nil }

func (s *stubIndex) SearchEmployeesByName(_ context.Context, name string, size int) ([]domain.Employee, error) {
	s.query, s.size = name, size
	return s.hits, nil
}
