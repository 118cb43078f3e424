package cli

import (
	"errors"
	"fmt"
	"os"

	"atmosfera/internal/annotator"
	"atmosfera/internal/cli/formatter"
	"atmosfera/internal/report"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	var stationName string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recommendation log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}

			var anns []annotator.Annotation
			if stationName != "" {
				key, err := st.Resolve(stationName)
				if err != nil {
					return err
				}
				all := st.Annotations(key)
				for i := len(all) - 1; i >= 0 && len(anns) < limit; i-- {
					anns = append(anns, all[i])
				}
			} else {
				anns = st.History(limit)
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(anns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", annotator.DefaultLogLimit, "Number of rows")
	cmd.Flags().StringVar(&stationName, "station", "", "Restrict to one station")

	return cmd
}

func newKPICmd(app *App) *cobra.Command {
	var years []int

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Summarize PM2.5 levels and the most critical station",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatKPI(st.KPI(years)))
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&years, "year", nil, "Restrict to these years (repeatable)")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var csvPath, xlsxPath, pngPath string
	var years []int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the recommendation log and KPI reports to files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" && xlsxPath == "" && pngPath == "" {
				return fmt.Errorf("nothing to export: set --csv, --xlsx or --png")
			}
			st, err := app.State(cmd.Context())
			if err != nil {
				return err
			}

			anns := st.History(st.Snapshot().Len())
			kpi := st.KPI(years)

			if csvPath != "" {
				if err := writeFile(csvPath, func(f *os.File) error { return report.WriteHistoryCSV(f, anns) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", csvPath)
			}
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, func(f *os.File) error { return report.WriteHistoryXLSX(f, anns, kpi) }); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
			}
			if pngPath != "" {
				err := writeFile(pngPath, func(f *os.File) error { return report.WriteTrendPNG(f, kpi.Monthly) })
				if errors.Is(err, report.ErrNoData) {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("no monthly data, trend chart skipped"))
				} else if err != nil {
					return err
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", pngPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Recommendation log CSV path")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Recommendation log and KPI workbook path")
	cmd.Flags().StringVar(&pngPath, "png", "", "Monthly PM2.5 trend chart path")
	cmd.Flags().IntSliceVar(&years, "year", nil, "Restrict KPI to these years (repeatable)")

	return cmd
}

// writeFile creates path and runs write on it. A failed write removes the file.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
