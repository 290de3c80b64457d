package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newAggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Populate the agency table from employee rows when it is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			start := time.Now()
			inserted, err := app.Loader.Aggregate(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), loadOutput{
				Command:    "aggregate",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]int64{"agencies_inserted": inserted},
			})
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every employee into the Elasticsearch index",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if !app.Loader.HasIndex() {
				return errors.New("employee search is not configured, set ELASTIC_URL")
			}

			start := time.Now()
			indexed, err := app.Loader.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), loadOutput{
				Command:    "reindex",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]int{"indexed": indexed},
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the agency xlsx report to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := app.AgencyService.ExportReport(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "agencies.xlsx", "Output file")
	return cmd
}
