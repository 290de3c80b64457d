package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/public_salaries/internal/domain"
)

var agencyRowColumns = []string{
	"id", "name", "year", "employee_count", "top_salary", "top_overtime", "top_pay",
	"median_pay", "total_salary", "total_overtime", "total_pay",
}

func TestAgencyRepositoryAggregate(t *testing.T) {
	t.Run("empty table runs the aggregation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
			WithArgs(aggregateLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM agency")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO agency .* percentile_cont\(0\.5\) WITHIN GROUP .* GROUP BY e\.agency, e\.year .* ON CONFLICT \(name, year\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		inserted, err := NewAgencyRepository(db).Aggregate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("populated table is left alone", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM agency")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
		mock.ExpectCommit()

		inserted, err := NewAgencyRepository(db).Aggregate(context.Background())
		require.NoError(t, err)
		assert.Zero(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM agency")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO agency").WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		_, err = NewAgencyRepository(db).Aggregate(context.Background())
		assert.ErrorContains(t, err, "failed to aggregate agencies")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAgencyRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM agency WHERE name ILIKE $1 ORDER BY name ASC, year ASC")).
		WithArgs("%fire%").
		WillReturnRows(sqlmock.NewRows(agencyRowColumns).
			AddRow(1, "Fire", 2021, 2, "250.00", "50.00", "300.00", 200.0, "350.00", "50.00", "400.00"))

	agencies, err := NewAgencyRepository(db).List(context.Background(), domain.AgencyFilter{Name: "fire"})
	require.NoError(t, err)
	require.Len(t, agencies, 1)
	fire := agencies[0]
	assert.Equal(t, int64(2), fire.EmployeeCount)
	assert.True(t, fire.TopPay.Equal(decimal.NewFromInt(300)))
	assert.True(t, fire.TotalPay.Equal(decimal.NewFromInt(400)))
	assert.True(t, fire.MedianPay.Equal(decimal.NewFromInt(200)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgencyRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM agency WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(agencyRowColumns))

	a, err := NewAgencyRepository(db).GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAgencyRepositoryStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\),\s+COALESCE\(SUM\(employee_count\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "employees", "salary", "overtime", "pay"}).
			AddRow(2, 5, "1000.00", "200.00", "1200.00"))

	stats, err := NewAgencyRepository(db).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 1000, 200, 1200}, stats.Vector())
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%fire%", likePattern("fire"))
	assert.Equal(t, `%a\_b\%c\\%`, likePattern(`a_b%c\`))
}

func TestNewAgencyRepositoryReturnsDomainInterface(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var repo domain.AgencyRepository = NewAgencyRepository(db)
	assert.IsType(t, &agencyRepository{}, repo)
}
