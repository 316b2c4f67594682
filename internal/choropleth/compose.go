package choropleth

import (
	"github.com/sells-group/tqgap/internal/dataset"
)

// MapOptions carries the basemap settings.
type MapOptions struct {
	AccessToken string
	Style       string
	// Camera is the viewport of a first build. Zero means DefaultCamera.
	Camera Camera
}

// Compose assembles the figure: an invisible point layer over the whole slice, the overlay
// stack, the legend and the camera.
func Compose(records []dataset.Record, overlays []Overlay, annotations []Annotation, cam Camera, opts MapOptions) *MapSpec {
	style := opts.Style
	if style == "" {
		style = "light"
	}

	base := Trace{
		Type:      "scattermapbox",
		Mode:      "markers",
		Lat:       make([]float64, len(records)),
		Lon:       make([]float64, len(records)),
		Text:      make([]string, len(records)),
		HoverInfo: "text",
		Marker:    Marker{Size: 3},
		Opacity:   0,
	}
	for i, r := range records {
		base.Lat[i] = r.Latitude
		base.Lon[i] = r.Longitude
		base.Text[i] = r.Hover
	}

	if overlays == nil {
		overlays = []Overlay{}
	}
	if annotations == nil {
		annotations = []Annotation{}
	}

	return &MapSpec{
		Data: []Trace{base},
		Layout: Layout{
			Annotations: annotations,
			HoverMode:   "closest",
			Margin:      Margin{},
			DragMode:    "lasso",
			Mapbox: Mapbox{
				Layers:      overlays,
				AccessToken: opts.AccessToken,
				Style:       style,
				Center:      LatLon{Lat: cam.Lat, Lon: cam.Lon},
				Zoom:        cam.Zoom,
			},
		},
	}
}
