package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/locvowork/public_salaries/internal/config"
	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/ingest"
)

type loadOutput struct {
	Command    string `json:"command"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

type dryRunResult struct {
	Employees int             `json:"employees"`
	Skipped   int             `json:"skipped"`
	Agencies  []domain.Agency `json:"agencies"`
}

func newLoadCmd() *cobra.Command {
	var (
		csvPaths []string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Ingest the salaries CSV and aggregate agencies (skipped when data exists)",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if dryRun {
				res, err := dryRunLoad(csvPaths)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), loadOutput{
					Command:    "load --dry-run",
					DurationMS: time.Since(start).Milliseconds(),
					Result:     res,
				})
			}

			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if len(csvPaths) > 0 {
				app.Loader.WithCSVPaths(csvPaths...)
			}
			res, err := app.Loader.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), loadOutput{
				Command:    "load",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     res,
			})
		},
	}

	cmd.Flags().StringSliceVar(&csvPaths, "csv", nil, "CSV files to ingest (defaults to CSV_PATH)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and aggregate in memory without touching the database")
	return cmd
}

// dryRunLoad parses the CSV files and aggregates them in memory.
func dryRunLoad(csvPaths []string) (*dryRunResult, error) {
	if err := config.LoadEnvConfig(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}
	if len(csvPaths) == 0 {
		csvPaths = config.DefaultEnvConfig.CSVPaths()
	}

	res := &dryRunResult{}
	var all []domain.Employee
	for _, path := range csvPaths {
		employees, skipped, err := readCSV(path, config.DefaultEnvConfig.INGEST_DEFAULT_YEAR)
		if err != nil {
			return nil, err
		}
		all = append(all, employees...)
		res.Skipped += skipped
	}
	res.Employees = len(all)
	res.Agencies = domain.AggregateAgencies(all)
	return res, nil
}

func readCSV(path string, defaultYear int) ([]domain.Employee, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open csv %s: %w", path, err)
	}
	defer f.Close()
	return ingest.ReadAll(f, defaultYear)
}
