// Package palette provides colorscales for the bin legend.
package palette

import (
	"math"
	"os"
	"regexp"
	"slices"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Default is the dark-teal to green scale the dashboard opens with.
var Default = []string{
	"#2a4858", "#265465", "#1e6172", "#106e7c", "#007b84",
	"#00898a", "#00968e", "#19a390", "#31b08f", "#4abd8c", "#64c988",
}

var (
	hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	rgbColor = regexp.MustCompile(`^rgba?\(\s*\d{1,3}\s*,\s*\d{1,3}\s*,\s*\d{1,3}\s*(?:,\s*(?:0|1|0?\.\d+)\s*)?\)$`)
)

// Sample picks n swatches spread evenly across scale, keeping both ends.
// n larger than the scale returns the whole scale.
func Sample(scale []string, n int) []string {
	if n <= 0 || len(scale) == 0 {
		return nil
	}
	if n >= len(scale) {
		return slices.Clone(scale)
	}
	if n == 1 {
		return []string{scale[0]}
	}
	out := make([]string, n)
	step := float64(len(scale)-1) / float64(n-1)
	for i := range n {
		out[i] = scale[int(math.Round(float64(i)*step))]
	}
	return out
}

// ValidToken reports whether token is a hex or rgb()/rgba() color.
func ValidToken(token string) bool {
	return hexColor.MatchString(token) || rgbColor.MatchString(token)
}

// Validate returns an error naming the first invalid color token.
func Validate(scale []string) error {
	for i, c := range scale {
		if !ValidToken(c) {
			return eris.Errorf("palette: color %d (%q) is not a hex or rgb color", i, c)
		}
	}
	return nil
}

// Presets are named colorscales.
type Presets map[string][]string

// LoadPresets reads a YAML file mapping preset names to color lists.
// The built-in "default" preset is always present.
func LoadPresets(path string) (Presets, error) {
	presets := Presets{"default": slices.Clone(Default)}
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "palette: read presets")
	}

	var file struct {
		Presets map[string][]string `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "palette: parse presets")
	}

	for name, scale := range file.Presets {
		if len(scale) == 0 {
			return nil, eris.Errorf("palette: preset %q is empty", name)
		}
		if err := Validate(scale); err != nil {
			return nil, eris.Wrapf(err, "palette: preset %q", name)
		}
		presets[name] = scale
	}
	return presets, nil
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
