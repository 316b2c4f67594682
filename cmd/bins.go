package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/tqgap/internal/binning"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/palette"
)

var (
	binsYear   int
	binsMetric string
)

var binsCmd = &cobra.Command{
	Use:   "bins",
	Short: "List the ordered outcome bins and their default colors for a year and metric",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("bins"); err != nil {
			return err
		}

		ds, err := loadDataset(cmd.Context(), cfg, newSources(cfg))
		if err != nil {
			return err
		}

		ordered := binning.Order(ds.Bins(binsYear, binsMetric), binning.ParseMode(cfg.Bins.Order))
		colors := binning.AssignColors(ordered, palette.Sample(palette.Default, len(ordered)))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BIN\tCOLOR")
		for _, bin := range ordered {
			color, ok := colors[bin]
			if !ok {
				color = "(no color)"
			}
			fmt.Fprintf(w, "%s\t%s\n", bin, color)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if bad := binning.Malformed(ordered); len(bad) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "malformed bin labels: %v\n", bad)
		}
		return nil
	},
}

func init() {
	binsCmd.Flags().IntVar(&binsYear, "year", 0, "survey year")
	binsCmd.Flags().StringVar(&binsMetric, "metric", dataset.DefaultMetric, "gap metric")
	_ = binsCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(binsCmd)
}
