package service

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/pkg/xlsxreport"
)

//go:embed agency_report.yaml
var agencyReportLayout string

// AgencyService serves read-only agency lookups and reports.
type AgencyService struct {
	repo domain.AgencyRepository
}

// NewAgencyService creates a new AgencyService
func NewAgencyService(repo domain.AgencyRepository) *AgencyService {
	return &AgencyService{repo: repo}
}

// FindByID returns nil without error when the agency does not exist.
func (s *AgencyService) FindByID(ctx context.Context, id int64) (*domain.Agency, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByName lists agencies whose name contains filter.Name; a blank name matches all.
func (s *AgencyService) FindByName(ctx context.Context, filter domain.AgencyFilter) ([]domain.Agency, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	return s.repo.List(ctx, filter)
}

// FindStats returns the summary vector:
// agency count, employee count, total salary, total overtime, total pay.
func (s *AgencyService) FindStats(ctx context.Context) ([]float64, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Vector(), nil
}

// ExportReport writes an xlsx workbook of every agency to w.
func (s *AgencyService) ExportReport(ctx context.Context, w io.Writer) error {
	agencies, err := s.repo.List(ctx, domain.AgencyFilter{})
	if err != nil {
		return err
	}

	report, err := xlsxreport.New(agencyReportLayout)
	if err != nil {
		return fmt.Errorf("failed to load report layout: %w", err)
	}
	report.Bind("agencies", agencies).
		RegisterFormatter("money", func(v interface{}) interface{} {
			if d, ok := v.(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return v
		})

	if err := report.Write(w); err != nil {
		return fmt.Errorf("failed to render agency report: %w", err)
	}
	return nil
}
