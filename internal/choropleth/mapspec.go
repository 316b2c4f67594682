// Package choropleth turns a selection into a map specification: ordered bins, colors,
// per-bin boundary overlays, legend annotations and the retained camera.
package choropleth

import (
	"encoding/json"
	"strconv"
)

// Overlay opacity shared by every bin fill.
const OverlayOpacity = 0.6

// Camera is the map viewport carried from one rebuild to the next.
type Camera struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom float64 `json:"zoom"`
}

// DefaultCamera frames Washington state.
var DefaultCamera = Camera{Lat: 47.5, Lon: -120, Zoom: 5.9}

// MapSpec is a Plotly scattermapbox figure.
type MapSpec struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is the invisible point layer carrying hover text and lasso selection.
type Trace struct {
	Type      string    `json:"type"`
	Mode      string    `json:"mode"`
	Lat       []float64 `json:"lat"`
	Lon       []float64 `json:"lon"`
	Text      []string  `json:"text"`
	HoverInfo string    `json:"hoverinfo"`
	Marker    Marker    `json:"marker"`
	Opacity   float64   `json:"opacity"`
}

// Marker styles the base layer points.
type Marker struct {
	Size float64 `json:"size"`
}

// Layout holds the figure layout.
type Layout struct {
	Annotations []Annotation `json:"annotations"`
	HoverMode   string       `json:"hovermode"`
	Margin      Margin       `json:"margin"`
	DragMode    string       `json:"dragmode"`
	Mapbox      Mapbox       `json:"mapbox"`
}

// Margin is the figure margin in pixels.
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	B int `json:"b"`
	T int `json:"t"`
}

// Mapbox configures the basemap, its layers and the viewport.
type Mapbox struct {
	Layers      []Overlay `json:"layers"`
	AccessToken string    `json:"accesstoken,omitempty"`
	Style       string    `json:"style"`
	Center      LatLon    `json:"center"`
	Zoom        float64   `json:"zoom"`
}

// LatLon is a map center.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Overlay is one bin's filled boundary layer.
type Overlay struct {
	SourceType string          `json:"sourcetype"`
	Source     json.RawMessage `json:"source"`
	Type       string          `json:"type"`
	Color      string          `json:"color"`
	Opacity    float64         `json:"opacity"`
	Name       string          `json:"name"`
}

// Annotation is a legend entry or the legend title.
type Annotation struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	XRef       string  `json:"xref"`
	YRef       string  `json:"yref"`
	ShowArrow  bool    `json:"showarrow"`
	Align      string  `json:"align,omitempty"`
	AX         float64 `json:"ax,omitempty"`
	AY         float64 `json:"ay"`
	ArrowWidth float64 `json:"arrowwidth,omitempty"`
	ArrowHead  int     `json:"arrowhead"`
	ArrowColor string  `json:"arrowcolor,omitempty"`
	BGColor    string  `json:"bgcolor,omitempty"`
}

// Camera reads the viewport back from a previously emitted spec.
func (m *MapSpec) Camera() Camera {
	return Camera{
		Lat:  m.Layout.Mapbox.Center.Lat,
		Lon:  m.Layout.Mapbox.Center.Lon,
		Zoom: m.Layout.Mapbox.Zoom,
	}
}

// CameraFrom returns the camera of prev, or DefaultCamera when there is no previous spec.
func CameraFrom(prev *MapSpec) Camera {
	if prev == nil {
		return DefaultCamera
	}
	return prev.Camera()
}

// Title is the page heading for a survey year.
func Title(year int) string {
	return "Heatmap of Measures of Teacher Quality in Year " + strconv.Itoa(year)
}
