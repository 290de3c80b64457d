package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olivere/elastic/v7"
	"github.com/shopspring/decimal"

	"github.com/locvowork/public_salaries/internal/domain"
)

const employeeIndex = "employees"

const employeeMapping = `{
	"mappings": {
		"properties": {
			"id":                {"type": "long"},
			"agency":            {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"name":              {"type": "text"},
			"job_title":         {"type": "text"},
			"original_hire_date":{"type": "keyword"},
			"year":              {"type": "integer"},
			"salary":            {"type": "scaled_float", "scaling_factor": 100},
			"overtime":          {"type": "scaled_float", "scaling_factor": 100},
			"total_annual_amount":{"type": "scaled_float", "scaling_factor": 100}
		}
	}
}`

// EmployeeDoc mirrors domain.Employee for ES storage.
type EmployeeDoc struct {
	ID                int64   `json:"id"`
	Agency            string  `json:"agency"`
	Name              string  `json:"name"`
	JobTitle          string  `json:"job_title"`
	OriginalHireDate  string  `json:"original_hire_date"`
	Year              int     `json:"year"`
	Salary            float64 `json:"salary"`
	Overtime          float64 `json:"overtime"`
	TotalAnnualAmount float64 `json:"total_annual_amount"`
}

func toEmployeeDoc(e domain.Employee) EmployeeDoc {
	return EmployeeDoc{
		ID:                e.ID,
		Agency:            e.Agency,
		Name:              e.Name,
		JobTitle:          e.JobTitle,
		OriginalHireDate:  e.OriginalHireDate,
		Year:              e.Year,
		Salary:            e.Salary.InexactFloat64(),
		Overtime:          e.Overtime.InexactFloat64(),
		TotalAnnualAmount: e.TotalAnnualAmount.InexactFloat64(),
	}
}

func (d EmployeeDoc) toDomain() domain.Employee {
	return domain.Employee{
		ID:                d.ID,
		Agency:            d.Agency,
		Name:              d.Name,
		JobTitle:          d.JobTitle,
		OriginalHireDate:  d.OriginalHireDate,
		Year:              d.Year,
		Salary:            decimal.NewFromFloat(d.Salary).Round(2),
		Overtime:          decimal.NewFromFloat(d.Overtime).Round(2),
		TotalAnnualAmount: decimal.NewFromFloat(d.TotalAnnualAmount).Round(2),
	}
}

// ElasticSearchClient wraps olivere/elastic client.
type ElasticSearchClient struct {
	client *elastic.Client
}

// NewElasticSearchClient creates a new client for Elasticsearch 7.x.
func NewElasticSearchClient(url string) (*ElasticSearchClient, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false), // required behind docker networking
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &ElasticSearchClient{client: client}, nil
}

// EnsureIndex creates the employee index with its mapping if it does not exist yet.
func (es *ElasticSearchClient) EnsureIndex(ctx context.Context) error {
	exists, err := es.client.IndexExists(employeeIndex).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", employeeIndex, err)
	}
	if exists {
		return nil
	}
	if _, err := es.client.CreateIndex(employeeIndex).BodyString(employeeMapping).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", employeeIndex, err)
	}
	return nil
}

// SearchEmployeesByName performs a full-text match on name and job title.
func (es *ElasticSearchClient) SearchEmployeesByName(ctx context.Context, name string, size int) ([]domain.Employee, error) {
	query := elastic.NewMultiMatchQuery(name, "name^2", "job_title")

	searchResult, err := es.client.Search().
		Index(employeeIndex).
		Query(query).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	employees := make([]domain.Employee, 0, len(searchResult.Hits.Hits))
	for _, item := range searchResult.Hits.Hits {
		var doc EmployeeDoc
		if err := json.Unmarshal(item.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode hit %s: %w", item.Id, err)
		}
		employees = append(employees, doc.toDomain())
	}

	return employees, nil
}

// BulkIndexEmployees indexes employees keyed by their database id.
func (es *ElasticSearchClient) BulkIndexEmployees(ctx context.Context, employees []domain.Employee) error {
	bulkRequest := es.client.Bulk()

	for _, emp := range employees {
		req := elastic.NewBulkIndexRequest().
			Index(employeeIndex).
			Id(strconv.FormatInt(emp.ID, 10)).
			Doc(toEmployeeDoc(emp))
		bulkRequest = bulkRequest.Add(req)
	}

	if bulkRequest.NumberOfActions() == 0 {
		return nil
	}

	bulkResponse, err := bulkRequest.Refresh("true").Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}

	if failed := bulkResponse.Failed(); len(failed) > 0 {
		reason := "unknown"
		if failed[0].Error != nil {
			reason = failed[0].Error.Reason
		}
		return fmt.Errorf("bulk index: %d items failed, first: %s", len(failed), reason)
	}

	return nil
}
