package dataset

import (
	"context"
	"io"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/fetcher"
)

// Column names of the published bins file.
const (
	ColYear      = "survyear"
	ColMetric    = "variable"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColHover     = "hover"
	ColBin       = "outcome_bins"
)

var requiredColumns = []string{ColYear, ColMetric, ColLatitude, ColLongitude, ColHover, ColBin}

// LoadOptions configures how the dataset source is read.
type LoadOptions struct {
	Source string
	// Format is "csv" or "xlsx". Empty infers it from the source extension.
	Format   string
	Encoding string
	Sheet    string
}

// Opener opens a dataset source location.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// Load reads and indexes the dataset.
func Load(ctx context.Context, opener Opener, opts LoadOptions) (*Dataset, error) {
	log := zap.L().With(zap.String("component", "dataset.loader"), zap.String("source", opts.Source))

	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "csv"
		if strings.EqualFold(path.Ext(stripQuery(opts.Source)), ".xlsx") {
			format = "xlsx"
		}
	}

	rc, err := opener.Open(ctx, opts.Source)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open source")
	}
	defer rc.Close() //nolint:errcheck

	var rows [][]string
	switch format {
	case "csv":
		rows, err = fetcher.ReadCSV(ctx, rc, fetcher.CSVOptions{Encoding: opts.Encoding})
	case "xlsx":
		rows, err = fetcher.ReadXLSX(rc, fetcher.XLSXOptions{Sheet: opts.Sheet})
	default:
		return nil, eris.Errorf("dataset: unsupported format %q", format)
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read rows")
	}

	records, skipped, err := parseRows(rows)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("dropped rows without coordinates", zap.Int("rows", skipped))
	}

	ds := New(records)
	log.Info("dataset loaded",
		zap.Int("records", ds.Len()),
		zap.Ints("years", ds.Years()),
		zap.Int("metrics", len(ds.Metrics())),
	)
	return ds, nil
}

// parseRows converts a header row plus data rows into records.
// Rows whose coordinates are blank are dropped and counted.
func parseRows(rows [][]string) ([]Record, int, error) {
	if len(rows) == 0 {
		return nil, 0, eris.New("dataset: source is empty")
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, eris.Errorf("dataset: missing column %q", col)
		}
	}

	cell := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]Record, 0, len(rows)-1)
	var skipped int
	for n, row := range rows[1:] {
		line := n + 2

		year, err := parseYear(cell(row, ColYear))
		if err != nil {
			return nil, 0, eris.Wrapf(err, "dataset: line %d: survyear", line)
		}

		latRaw, lonRaw := cell(row, ColLatitude), cell(row, ColLongitude)
		if latRaw == "" || lonRaw == "" {
			skipped++
			continue
		}
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil || math.IsNaN(lat) {
			skipped++
			continue
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil || math.IsNaN(lon) {
			skipped++
			continue
		}

		records = append(records, Record{
			Year:      year,
			Metric:    cell(row, ColMetric),
			Latitude:  lat,
			Longitude: lon,
			Hover:     cell(row, ColHover),
			Bin:       NormalizeBin(cell(row, ColBin)),
		})
	}

	return records, skipped, nil
}

// parseYear accepts "1988" as well as spreadsheet-style "1988.0".
func parseYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", s)
	}
	if f != math.Trunc(f) {
		return 0, eris.Errorf("year %q is not a whole number", s)
	}
	return int(f), nil
}

// NormalizeBin maps blank and NaN spellings to the NaN sentinel.
func NormalizeBin(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "na", "n/a":
		return NaN
	}
	return strings.TrimSpace(s)
}

func stripQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
