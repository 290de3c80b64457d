package domain

import (
	"github.com/shopspring/decimal"
)

func init() {
	// money fields are serialized as JSON numbers wherever the domain is used
	decimal.MarshalJSONWithoutQuotes = true
}

// Employee is one salaried worker for one year, as loaded from the salaries CSV.
type Employee struct {
	ID                int64           `json:"id" db:"id"`
	Agency            string          `json:"agency" db:"agency"`
	Name              string          `json:"name" db:"name"`
	JobTitle          string          `json:"jobTitle" db:"job_title"`
	OriginalHireDate  string          `json:"originalHireDate" db:"original_hire_date"`
	Year              int             `json:"year" db:"year"`
	Salary            decimal.Decimal `json:"salary" db:"salary"`
	Overtime          decimal.Decimal `json:"overtime" db:"overtime"`
	TotalAnnualAmount decimal.Decimal `json:"totalAnnualAmount" db:"total_annual_amount"`
}

// Agency holds the pre-aggregated pay figures of one agency for one year.
type Agency struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Year          int             `json:"year" db:"year"`
	EmployeeCount int64           `json:"employeeCount" db:"employee_count"`
	TopSalary     decimal.Decimal `json:"topSalary" db:"top_salary"`
	TopOvertime   decimal.Decimal `json:"topOvertime" db:"top_overtime"`
	TopPay        decimal.Decimal `json:"topPay" db:"top_pay"`
	MedianPay     decimal.Decimal `json:"medianPay" db:"median_pay"`
	TotalSalary   decimal.Decimal `json:"totalSalary" db:"total_salary"`
	TotalOvertime decimal.Decimal `json:"totalOvertime" db:"total_overtime"`
	TotalPay      decimal.Decimal `json:"totalPay" db:"total_pay"`
}

// Stats is the summary vector served by GET /agencies/stats.
type Stats struct {
	AgencyCount   int64
	EmployeeCount int64
	TotalSalary   decimal.Decimal
	TotalOvertime decimal.Decimal
	TotalPay      decimal.Decimal
}

// Vector returns the stats in their fixed wire order:
// agency count, employee count, total salary, total overtime, total pay.
func (s Stats) Vector() []float64 {
	return []float64{
		float64(s.AgencyCount),
		float64(s.EmployeeCount),
		s.TotalSalary.InexactFloat64(),
		s.TotalOvertime.InexactFloat64(),
		s.TotalPay.InexactFloat64(),
	}
}
