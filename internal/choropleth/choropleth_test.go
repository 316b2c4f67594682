package choropleth

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/tqgap/internal/boundary"
	"github.com/sells-group/tqgap/internal/dataset"
)

const polygonFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[-122,47],[-121,47],[-121,48],[-122,47]]]}}]}`

// fakeProvider serves one polygon per bin unless the bin is listed in errs.
type fakeProvider struct {
	mu     sync.Mutex
	errs   map[string]error
	delays map[string]time.Duration
	calls  []boundary.Key
}

func (f *fakeProvider) Fetch(ctx context.Context, key boundary.Key) (*boundary.Geometry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	err := f.errs[key.Bin]
	delay := f.delays[key.Bin]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return boundary.ParseGeometry([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"bin":"` + key.Bin + `"},"geometry":{"type":"Polygon","coordinates":[[[-122,47],[-121,47],[-121,48],[-122,47]]]}}]}`))
}

func (f *fakeProvider) bins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, k := range f.calls {
		out[i] = k.Bin
	}
	return out
}

func rec(year int, metric, bin string, lat, lon float64) dataset.Record {
	return dataset.Record{Year: year, Metric: metric, Latitude: lat, Longitude: lon, Hover: metric + " " + bin, Bin: bin}
}

// testDataset covers 1988-1990 with the worked-example bins in 1988 and no 1989 data.
func testDataset() *dataset.Dataset {
	return dataset.New([]dataset.Record{
		rec(1988, "experience_gap", "0.1 to 0.3", 47.1, -122.1),
		rec(1988, "experience_gap", "-0.2 to -0.1", 47.2, -122.2),
		rec(1988, "experience_gap", "nan", 47.3, -122.3),
		rec(1988, "experience_gap", "0.3 to 0.5", 47.4, -122.4),
		rec(1988, "experience_gap", "0.1 to 0.3", 47.5, -122.5),
		rec(1988, "novice_gap", "0.0 to 0.1", 46.1, -121.1),
		rec(1988, "novice_gap", "-0.1 to 0.0", 46.2, -121.2),
		rec(1990, "experience_gap", "0.3 to 0.5", 47.0, -120.0),
	})
}
