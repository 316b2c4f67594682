package choropleth

import (
	"github.com/sells-group/tqgap/internal/binning"
)

const (
	legendX       = 0.95
	legendTitleY  = 0.95
	legendFirstY  = 0.85
	legendStep    = 20.0
	legendBGColor = "#EFEFEE"
)

// LegendTitle is the heading annotation text for metric.
func LegendTitle(metric string) string {
	return "<b>" + metric + " per<br>School District per year</b>"
}

// BuildLegend returns the title annotation followed by one annotation per colored bin,
// stacked top to bottom in bin order. hide yields no annotations.
func BuildLegend(bins []string, colors binning.ColorMap, metric string, hide bool) []Annotation {
	if hide {
		return []Annotation{}
	}

	out := make([]Annotation, 0, len(bins)+1)
	out = append(out, Annotation{
		Text:      LegendTitle(metric),
		X:         legendX,
		Y:         legendTitleY,
		XRef:      "paper",
		YRef:      "paper",
		ShowArrow: false,
		Align:     "right",
	})

	var i int
	for _, bin := range bins {
		color, ok := colors[bin]
		if !ok {
			continue
		}
		out = append(out, Annotation{
			Text:       bin,
			X:          legendX,
			Y:          legendFirstY - float64(i)/legendStep,
			XRef:       "paper",
			YRef:       "paper",
			ShowArrow:  true,
			AX:         -60,
			AY:         0,
			ArrowWidth: 5,
			ArrowHead:  0,
			ArrowColor: color,
			BGColor:    legendBGColor,
		})
		i++
	}
	return out
}
