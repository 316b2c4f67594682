package binning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignColors_EqualLengthIsBijection(t *testing.T) {
	bins := []string{"0.3 to 0.5", "0.1 to 0.3", "-0.2 to -0.1"}
	colors := []string{"#2a4858", "#106e7c", "#64c988"}

	cm := AssignColors(bins, colors)
	assert.Len(t, cm, 3)

	seen := make(map[string]bool)
	for i, b := range bins {
		assert.Equal(t, colors[i], cm[b])
		seen[cm[b]] = true
	}
	assert.Len(t, seen, len(colors))
}

func TestAssignColors_ShortColorscale(t *testing.T) {
	bins := []string{"0.3 to 0.5", "0.1 to 0.3", "-0.2 to -0.1"}
	cm := AssignColors(bins, []string{"#2a4858", "#106e7c"})

	assert.Len(t, cm, 2)
	mapped, dropped := cm.Split(bins)
	assert.Equal(t, []string{"0.3 to 0.5", "0.1 to 0.3"}, mapped)
	assert.Equal(t, []string{"-0.2 to -0.1"}, dropped)
}

func TestAssignColors_LongColorscale(t *testing.T) {
	cm := AssignColors([]string{"0.1 to 0.3"}, []string{"#2a4858", "#106e7c", "#64c988"})
	assert.Equal(t, ColorMap{"0.1 to 0.3": "#2a4858"}, cm)
}

func TestAssignColors_Empty(t *testing.T) {
	cm := AssignColors(nil, []string{"#2a4858"})
	assert.Empty(t, cm)
	mapped, dropped := cm.Split(nil)
	assert.Empty(t, mapped)
	assert.Empty(t, dropped)
}
