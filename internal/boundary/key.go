// Package boundary resolves the per-bin district boundary geometry drawn as map overlays.
package boundary

import (
	"fmt"
	"strconv"

	"github.com/sells-group/tqgap/internal/dataset"
)

// Key identifies the boundary resource for one bin of one (year, metric, state) slice.
type Key struct {
	Year   int    `json:"year"`
	Metric string `json:"metric"`
	Bin    string `json:"bin"`
	State  string `json:"state"`
}

// FileName is the published file name: {state_slug}_{metric}_{bin}.geojson.
func (k Key) FileName() string {
	return fmt.Sprintf("%s_%s_%s.geojson", dataset.StateSlug(k.State), k.Metric, k.Bin)
}

// Path is the resource path relative to the boundary root: {year}/{file name}.
func (k Key) Path() string {
	return strconv.Itoa(k.Year) + "/" + k.FileName()
}

// String is the cache key.
func (k Key) String() string {
	return k.Path()
}
