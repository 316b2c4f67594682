package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/boundary"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Manage per-bin district boundary geometry",
}

var (
	importTarget string
	importOpts   = boundary.DefaultImportOptions()
)

var boundaryImportCmd = &cobra.Command{
	Use:   "import <shapefile>",
	Short: "Import dissolved district polygons from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "boundary.import"))

		env := &appEnv{}
		defer env.Close()

		w, err := boundaryWriter(cmd, env)
		if err != nil {
			return err
		}

		res, err := boundary.ImportShapefile(ctx, args[0], w, importOpts)
		if err != nil {
			return err
		}

		log.Info("boundary import complete",
			zap.String("target", importTarget),
			zap.Int("keys", len(res.Keys)),
			zap.Int("polygons", res.Polygons),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

// boundaryWriter opens the import destination named by --target.
func boundaryWriter(cmd *cobra.Command, env *appEnv) (boundary.Writer, error) {
	switch importTarget {
	case "file":
		return boundary.NewFileProvider(cfg.Boundary.Dir), nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, eris.New("boundary: database.url is required for the postgres target")
		}
		pg, err := openPostgres(cmd.Context(), cfg, env)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(cmd.Context()); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, eris.Errorf("boundary: unknown import target %q", importTarget)
	}
}

var boundaryMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostGIS boundary table and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return eris.New("boundary: database.url is required")
		}
		env := &appEnv{}
		defer env.Close()

		pg, err := openPostgres(cmd.Context(), cfg, env)
		if err != nil {
			return err
		}
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("boundary table ready", zap.String("table", cfg.Boundary.Table))
		return nil
	},
}

var listYear int

var boundaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the boundary keys stored in PostGIS for a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return eris.New("boundary: database.url is required")
		}
		env := &appEnv{}
		defer env.Close()

		pg, err := openPostgres(cmd.Context(), cfg, env)
		if err != nil {
			return err
		}
		keys, err := pg.Keys(cmd.Context(), listYear)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "YEAR\tMETRIC\tBIN\tSTATE")
		for _, k := range keys {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", k.Year, k.Metric, k.Bin, k.State)
		}
		return w.Flush()
	},
}

func init() {
	f := boundaryImportCmd.Flags()
	f.StringVar(&importTarget, "target", "postgres", "destination: postgres or file")
	f.StringVar(&importOpts.YearField, "year-field", importOpts.YearField, "attribute holding the survey year")
	f.StringVar(&importOpts.MetricField, "metric-field", importOpts.MetricField, "attribute holding the metric")
	f.StringVar(&importOpts.BinField, "bin-field", importOpts.BinField, "attribute holding the outcome bin")
	f.StringVar(&importOpts.StateField, "state-field", importOpts.StateField, "attribute holding the state")
	f.IntVar(&importOpts.Year, "year", 0, "fixed year when the year attribute is absent")
	f.StringVar(&importOpts.Metric, "metric", "", "fixed metric when the metric attribute is absent")
	f.StringVar(&importOpts.State, "state", importOpts.State, "fixed state when the state attribute is absent")

	boundaryListCmd.Flags().IntVar(&listYear, "year", 0, "survey year")
	_ = boundaryListCmd.MarkFlagRequired("year")

	boundaryCmd.AddCommand(boundaryImportCmd, boundaryMigrateCmd, boundaryListCmd)
	rootCmd.AddCommand(boundaryCmd)
}
