// Package dataset holds the binned school-district observations the map is drawn from.
package dataset

import (
	"slices"
)

// NaN is the sentinel bin label for a missing or unclassifiable value.
const NaN = "nan"

// Record is one district observation.
type Record struct {
	Year      int     `json:"survyear"`
	Metric    string  `json:"variable"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hover     string  `json:"hover"`
	Bin       string  `json:"outcome_bins"`
}

type sliceKey struct {
	year   int
	metric string
}

// Dataset is an immutable, indexed collection of records.
// It is built once at startup and shared read-only by every rebuild.
type Dataset struct {
	records []Record
	slices  map[sliceKey][]Record
	years   []int
	metrics []string
}

// New indexes records by (year, metric). The input order is preserved within each slice.
func New(records []Record) *Dataset {
	d := &Dataset{
		records: slices.Clone(records),
		slices:  make(map[sliceKey][]Record),
	}

	seenYear := make(map[int]bool)
	seenMetric := make(map[string]bool)
	for _, r := range d.records {
		k := sliceKey{year: r.Year, metric: r.Metric}
		d.slices[k] = append(d.slices[k], r)
		if !seenYear[r.Year] {
			seenYear[r.Year] = true
			d.years = append(d.years, r.Year)
		}
		if !seenMetric[r.Metric] {
			seenMetric[r.Metric] = true
			d.metrics = append(d.metrics, r.Metric)
		}
	}
	slices.Sort(d.years)
	slices.Sort(d.metrics)

	return d
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Slice returns the records for (year, metric). Callers must not modify the result.
func (d *Dataset) Slice(year int, metric string) []Record {
	return d.slices[sliceKey{year: year, metric: metric}]
}

// Bins returns the distinct bin labels observed in the (year, metric) slice, in first-seen order.
// An unmatched slice yields an empty result.
func (d *Dataset) Bins(year int, metric string) []string {
	recs := d.Slice(year, metric)
	seen := make(map[string]bool, 16)
	bins := make([]string, 0, 16)
	for _, r := range recs {
		if seen[r.Bin] {
			continue
		}
		seen[r.Bin] = true
		bins = append(bins, r.Bin)
	}
	return bins
}

// Years returns the distinct survey years in ascending order.
func (d *Dataset) Years() []int {
	return slices.Clone(d.years)
}

// YearRange returns the lowest and highest survey year. ok is false for an empty dataset.
func (d *Dataset) YearRange() (lo, hi int, ok bool) {
	if len(d.years) == 0 {
		return 0, 0, false
	}
	return d.years[0], d.years[len(d.years)-1], true
}

// Metrics returns the distinct metric labels present in the data.
func (d *Dataset) Metrics() []string {
	return slices.Clone(d.metrics)
}
