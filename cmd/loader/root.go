package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/locvowork/public_salaries/internal/bootstrap"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "loader",
		Short:        "Public salaries data maintenance",
		SilenceUsage: true,
	}
	cmd.AddCommand(newLoadCmd(), newAggregateCmd(), newReindexCmd(), newExportCmd())
	return cmd
}

// openApp connects storage without starting the HTTP server.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	app := bootstrap.NewApp()
	if err := app.InitializeStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
