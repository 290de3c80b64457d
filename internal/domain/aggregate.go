package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

type agencyKey struct {
	name string
	year int
}

// AggregateAgencies computes agency rows from employees in memory, grouping by
// (agency, year). It mirrors the SQL aggregation used by the agency repository
// and is used for dry runs where no database is available. IDs are left zero.
func AggregateAgencies(employees []Employee) []Agency {
	groups := make(map[agencyKey][]Employee)
	var keys []agencyKey
	for _, e := range employees {
		k := agencyKey{name: e.Agency, year: e.Year}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].year < keys[j].year
	})

	agencies := make([]Agency, 0, len(keys))
	for _, k := range keys {
		members := groups[k]
		a := Agency{Name: k.name, Year: k.year, EmployeeCount: int64(len(members))}
		pays := make([]decimal.Decimal, 0, len(members))
		for i, e := range members {
			if i == 0 || e.Salary.GreaterThan(a.TopSalary) {
				a.TopSalary = e.Salary
			}
			if i == 0 || e.Overtime.GreaterThan(a.TopOvertime) {
				a.TopOvertime = e.Overtime
			}
			if i == 0 || e.TotalAnnualAmount.GreaterThan(a.TopPay) {
				a.TopPay = e.TotalAnnualAmount
			}
			a.TotalSalary = a.TotalSalary.Add(e.Salary)
			a.TotalOvertime = a.TotalOvertime.Add(e.Overtime)
			a.TotalPay = a.TotalPay.Add(e.TotalAnnualAmount)
			pays = append(pays, e.TotalAnnualAmount)
		}
		a.MedianPay = median(pays)
		agencies = append(agencies, a)
	}
	return agencies
}

// median is the continuous 50th percentile rounded to cents: the mean of the two middle values
// for an even count.
func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return values[mid-1].Add(values[mid]).Div(decimal.NewFromInt(2)).Round(2)
}
