package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/palette"
)

var (
	renderYear       int
	renderMetric     string
	renderState      string
	renderColors     string
	renderPreset     string
	renderHideLegend bool
	renderOut        string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Build one map specification and write it as JSON",
	Example: `  tqgap render --year 1990 --metric experience_gap
  tqgap render --year 1995 --metric novice_gap --preset mono --out map.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "render")
		if err != nil {
			return err
		}
		defer env.Close()

		sel, err := renderSelection(env.Presets)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, rebuildTimeout(cfg, len(env.Builder.Bins(sel.Year, sel.Metric))))
		defer cancel()

		res, err := env.Builder.Build(ctx, sel, nil)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			zap.L().Warn("render", zap.String("warning", w))
		}

		if err := writeResult(renderOut, cmd.OutOrStdout(), res); err != nil {
			return err
		}

		zap.L().Info("map rendered",
			zap.String("title", res.Title),
			zap.Int("bins", len(res.Bins)),
			zap.Int("dropped", len(res.Dropped)),
			zap.Int("failures", len(res.Failures)),
		)
		return nil
	},
}

// writeResult writes res as indented JSON to path, or to stdout when path is empty.
func writeResult(path string, stdout io.Writer, res any) error {
	if path == "" {
		return encodeResult(stdout, res)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "render: create output")
	}
	if err := encodeResult(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "render: close output")
}

func encodeResult(w io.Writer, res any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(res), "render: encode result")
}

// renderSelection turns the render flags into a selection. Explicit colors win over a preset.
func renderSelection(presets palette.Presets) (choropleth.Selection, error) {
	sel := choropleth.Selection{
		Year:       renderYear,
		Metric:     renderMetric,
		State:      renderState,
		HideLegend: renderHideLegend,
	}

	switch {
	case renderColors != "":
		for _, c := range strings.Split(renderColors, ",") {
			if c = strings.TrimSpace(c); c != "" {
				sel.Colorscale = append(sel.Colorscale, c)
			}
		}
	case renderPreset != "":
		scale, ok := presets[renderPreset]
		if !ok {
			return sel, eris.Errorf("render: unknown preset %q (have %s)", renderPreset, strings.Join(presets.Names(), ", "))
		}
		sel.Colorscale = scale
	}
	return sel, nil
}

func init() {
	renderCmd.Flags().IntVar(&renderYear, "year", 0, "survey year")
	renderCmd.Flags().StringVar(&renderMetric, "metric", dataset.DefaultMetric, "gap metric")
	renderCmd.Flags().StringVar(&renderState, "state", dataset.DefaultState, "state")
	renderCmd.Flags().StringVar(&renderColors, "colors", "", "comma-separated colorscale (hex or rgb())")
	renderCmd.Flags().StringVar(&renderPreset, "preset", "", "named colorscale preset")
	renderCmd.Flags().BoolVar(&renderHideLegend, "hide-legend", false, "omit legend annotations")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default stdout)")
	_ = renderCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(renderCmd)
}
