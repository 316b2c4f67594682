package boundary

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/dataset"
)

// ImportOptions maps shapefile attributes onto boundary keys.
// When a field is absent from the shapefile the fixed value is used instead.
type ImportOptions struct {
	YearField   string
	MetricField string
	BinField    string
	StateField  string

	Year   int
	Metric string
	State  string
}

// DefaultImportOptions returns the attribute names written by the district-dissolve export.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		YearField:   "SURVYEAR",
		MetricField: "VARIABLE",
		BinField:    "OUTCOME_BI",
		StateField:  "STATE",
		State:       dataset.DefaultState,
	}
}

// ImportResult summarises an import.
type ImportResult struct {
	Keys     []Key `json:"keys"`
	Polygons int   `json:"polygons"`
	Skipped  int   `json:"skipped"`
}

// ImportShapefile reads a polygon shapefile, groups its shapes by key and writes each group.
func ImportShapefile(ctx context.Context, path string, w Writer, opts ImportOptions) (*ImportResult, error) {
	log := zap.L().With(zap.String("component", "boundary.importer"), zap.String("path", path))

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	yearIdx := fieldIndex(reader, opts.YearField)
	metricIdx := fieldIndex(reader, opts.MetricField)
	binIdx := fieldIndex(reader, opts.BinField)
	stateIdx := fieldIndex(reader, opts.StateField)

	if binIdx < 0 {
		return nil, eris.Errorf("boundary: shapefile has no %q field", opts.BinField)
	}
	if yearIdx < 0 && opts.Year == 0 {
		return nil, eris.Errorf("boundary: shapefile has no %q field and no year was given", opts.YearField)
	}
	if metricIdx < 0 && opts.Metric == "" {
		return nil, eris.Errorf("boundary: shapefile has no %q field and no metric was given", opts.MetricField)
	}

	attr := func(idx int, fallback string) string {
		if idx < 0 {
			return fallback
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	groups := make(map[Key][]*geom.MultiPolygon)
	res := &ImportResult{}
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "boundary: import cancelled")
		}

		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			res.Skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			res.Skipped++
			continue
		}

		year := opts.Year
		if yearIdx >= 0 {
			year, err = parseShapeYear(attr(yearIdx, ""))
			if err != nil {
				log.Warn("skipping shape with bad year", zap.Int("shape", n), zap.Error(err))
				res.Skipped++
				continue
			}
		}

		key := Key{
			Year:   year,
			Metric: attr(metricIdx, opts.Metric),
			Bin:    dataset.NormalizeBin(attr(binIdx, "")),
			State:  attr(stateIdx, opts.State),
		}
		groups[key] = append(groups[key], mp)
		res.Polygons++
	}

	for key := range groups {
		res.Keys = append(res.Keys, key)
	}
	sort.Slice(res.Keys, func(i, j int) bool { return res.Keys[i].String() < res.Keys[j].String() })

	for _, key := range res.Keys {
		if err := w.WriteBoundary(ctx, key, groups[key]); err != nil {
			return nil, eris.Wrapf(err, "boundary: write %s", key)
		}
	}

	log.Info("shapefile imported",
		zap.Int("keys", len(res.Keys)),
		zap.Int("polygons", res.Polygons),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func parseShapeYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse year %q", s)
	}
	return int(f), nil
}

// polygonToMultiPolygon converts a shapefile polygon to a MultiPolygon with one polygon per ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
