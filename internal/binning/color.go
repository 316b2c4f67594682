package binning

// ColorMap maps a bin label to its color token.
type ColorMap map[string]string

// AssignColors pairs bins and colors by position up to the shorter length.
// Excess colors are unused; excess bins stay unmapped.
func AssignColors(bins, colors []string) ColorMap {
	n := min(len(bins), len(colors))
	cm := make(ColorMap, n)
	for i := range n {
		cm[bins[i]] = colors[i]
	}
	return cm
}

// Split partitions ordered bins into those with a color and those without, keeping order.
func (cm ColorMap) Split(bins []string) (mapped, dropped []string) {
	for _, b := range bins {
		if _, ok := cm[b]; ok {
			mapped = append(mapped, b)
		} else {
			dropped = append(dropped, b)
		}
	}
	return mapped, dropped
}
