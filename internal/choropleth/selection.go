package choropleth

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/tqgap/internal/dataset"
	"github.com/sells-group/tqgap/internal/palette"
)

// ErrInvalidSelection is returned for selections outside the dataset or catalogue.
var ErrInvalidSelection = eris.New("choropleth: invalid selection")

// Selection is the full set of user inputs for one rebuild.
type Selection struct {
	Year       int      `json:"year"`
	Metric     string   `json:"metric"`
	State      string   `json:"state"`
	Colorscale []string `json:"colorscale"`
	HideLegend bool     `json:"hide_legend"`
}

// Validate checks the selection against the catalogue and the dataset's year range.
// A year inside the range with no observations is valid and renders an empty map.
func (s Selection) Validate(ds *dataset.Dataset) error {
	if _, ok := dataset.GroupOf(s.Metric); !ok {
		return eris.Wrapf(ErrInvalidSelection, "unknown metric %q", s.Metric)
	}
	if !dataset.IsState(s.State) {
		return eris.Wrapf(ErrInvalidSelection, "unknown state %q", s.State)
	}
	lo, hi, ok := ds.YearRange()
	if !ok {
		return eris.Wrap(ErrInvalidSelection, "dataset has no years")
	}
	if s.Year < lo || s.Year > hi {
		return eris.Wrapf(ErrInvalidSelection, "year %d outside %d-%d", s.Year, lo, hi)
	}
	if err := palette.Validate(s.Colorscale); err != nil {
		return eris.Wrapf(ErrInvalidSelection, "%v", err)
	}
	return nil
}
