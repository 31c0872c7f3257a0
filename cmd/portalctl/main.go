// Command portalctl inspects workbooks and maintains the dataset catalog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/maritime-portal/cmd/api"
	"github.com/FACorreiaa/maritime-portal/internal/domain/charts"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/header"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/pipeline"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/pkg/config"
	"github.com/FACorreiaa/maritime-portal/pkg/httpx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var pretty bool

	root := &cobra.Command{
		Use:          "portalctl",
		Short:        "Inspect market data workbooks and maintain the dataset catalog",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	root.AddCommand(newInspectCmd(&pretty), newReconcileCmd(&pretty), newChartsCmd(&pretty))
	return root
}

type inspectOutput struct {
	File            string         `json:"file"`
	Engine          string         `json:"engine"`
	Sheet           string         `json:"sheet"`
	BaseFilename    string         `json:"base_filename"`
	CatalogMatched  bool           `json:"catalog_matched"`
	Suggestion      string         `json:"catalog_suggestion,omitempty"`
	Columns         []string       `json:"columns"`
	SelectedColumns []string       `json:"selected_columns"`
	CodesUsed       []string       `json:"codes_used"`
	Units           []string       `json:"units"`
	Cargos          []string       `json:"cargos"`
	LabelNote       string         `json:"label_extraction_error,omitempty"`
	RowCount        int            `json:"row_count"`
	Data            []table.Record `json:"data"`
}

func newInspectCmd(pretty *bool) *cobra.Command {
	var (
		name        string
		sheet       string
		rows        int
		catalogPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect [workbook]",
		Short: "Run a workbook through the ingestion pipeline without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("file not found: %s", path)
			}
			if name == "" {
				name = filepath.Base(path)
			}

			catalog, err := api.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
			res, err := pipeline.New(catalog, header.DefaultHeaderRows, nil).Run(path, name, sheet)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), *pretty, inspectOutput{
				File:            name,
				Engine:          res.Workbook.Engine,
				Sheet:           res.Workbook.Sheet,
				BaseFilename:    res.Selection.BaseFilename,
				CatalogMatched:  res.Selection.Matched,
				Suggestion:      res.Selection.Suggestion,
				Columns:         res.Keys,
				SelectedColumns: res.Selection.Columns,
				CodesUsed:       res.Selection.CodesUsed,
				Units:           res.Units,
				Cargos:          res.Resolution.Cargos,
				LabelNote:       res.LabelNote,
				RowCount:        len(res.Narrowed),
				Data:            httpx.Records(table.Head(res.Narrowed, rows)),
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Upload filename used for the catalog lookup (default: the file's base name)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: the first sheet)")
	cmd.Flags().IntVar(&rows, "rows", 10, "Rows to print; negative prints all")
	cmd.Flags().StringVar(&catalogPath, "catalog", os.Getenv("CODE_CATALOG_PATH"), "Series code catalog YAML (default: embedded)")
	return cmd
}

func newReconcileCmd(pretty *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove stored uploads without a catalog row and report rows whose file is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDependencies(cmd.Context(), func(d *api.Dependencies) error {
				report, err := d.DatasetService.Reconcile(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), *pretty, report)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without removing them")
	return cmd
}

func newChartsCmd(pretty *bool) *cobra.Command {
	var (
		view string
		ref  string
	)

	cmd := &cobra.Command{
		Use:   "charts",
		Short: "Print the chart payload of a view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v charts.View
			switch view {
			case charts.DefaultView.Name:
				v = charts.DefaultView
			case charts.ContainerView.Name:
				v = charts.ContainerView
			default:
				return fmt.Errorf("invalid view: %s (must be default or container)", view)
			}
			month, ok := httpx.ParseMonth(ref, time.Now())
			if !ok {
				return fmt.Errorf("invalid ref: %s (must be YYYY-MM)", ref)
			}

			return withDependencies(cmd.Context(), func(d *api.Dependencies) error {
				res, err := d.Aggregator.Aggregate(cmd.Context(), v.WithFloorYear(d.Config.Ingest.YearFloor), month)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), *pretty, res)
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", charts.DefaultView.Name, "Chart view: default or container")
	cmd.Flags().StringVar(&ref, "ref", "", "Reference month as YYYY-MM (default: current month)")
	return cmd
}

func withDependencies(ctx context.Context, fn func(*api.Dependencies) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Jobs.ReconcileEnabled = false

	deps, err := api.InitDependencies(ctx, cfg, api.NewLogger(os.Stderr, cfg.Observability.LogLevel))
	if err != nil {
		return err
	}
	defer deps.Cleanup()
	return fn(deps)
}

func writeJSON(w io.Writer, pretty bool, v any) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
