package domain

import "context"

// EmployeeFilter defines criteria for listing employees. Zero values mean "no constraint".
type EmployeeFilter struct {
	Name     string `query:"name" validate:"max=200"`
	Agency   string `query:"agency" validate:"max=200"`
	JobTitle string `query:"jobTitle" validate:"max=200"`
	Year     int    `query:"year" validate:"omitempty,min=1900,max=2100"`
	Limit    int    `query:"limit" validate:"min=0,max=10000"`
	Offset   int    `query:"offset" validate:"min=0"`
}

// AgencyFilter defines criteria for listing agencies.
type AgencyFilter struct {
	Name string `query:"name" validate:"max=200"`
	Year int    `query:"year" validate:"omitempty,min=1900,max=2100"`
}

// EmployeeRepository defines the interface for employee data access
type EmployeeRepository interface {
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, id int64) (*Employee, error)
	List(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
}

// AgencyRepository defines the interface for agency data access
type AgencyRepository interface {
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*Agency, error)
	List(ctx context.Context, filter AgencyFilter) ([]Agency, error)
	Stats(ctx context.Context) (Stats, error)
	// Aggregate fills the agency table from employee rows when it is empty.
	// It returns the number of agency rows inserted.
	Aggregate(ctx context.Context) (int64, error)
}

// EmployeeIndex is a full-text index over employees.
type EmployeeIndex interface {
	BulkIndexEmployees(ctx context.Context, employees []Employee) error
	SearchEmployeesByName(ctx context.Context, name string, size int) ([]Employee, error)
}
