package boundary

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var (
	// ErrNotFound is returned when no boundary exists for a key.
	ErrNotFound = eris.New("boundary: not found")
	// ErrMalformed is returned when a payload is not polygon GeoJSON.
	ErrMalformed = eris.New("boundary: malformed payload")
)

// Geometry is a validated GeoJSON payload ready to embed in a fill layer.
type Geometry struct {
	// Payload is the GeoJSON exactly as the provider returned it.
	Payload  json.RawMessage
	Features int
}

type geoJSONEnvelope struct {
	Type     string          `json:"type"`
	Geometry json.RawMessage `json:"geometry"`
	Features []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// ParseGeometry validates a FeatureCollection, Feature or bare Polygon/MultiPolygon payload.
func ParseGeometry(data []byte) (*Geometry, error) {
	data = bytes.TrimSpace(data)
	var env geoJSONEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode: %v", err)
	}

	var raws []json.RawMessage
	switch env.Type {
	case "FeatureCollection":
		for _, f := range env.Features {
			raws = append(raws, f.Geometry)
		}
	case "Feature":
		raws = append(raws, env.Geometry)
	case "Polygon", "MultiPolygon":
		raws = append(raws, json.RawMessage(data))
	default:
		return nil, eris.Wrapf(ErrMalformed, "unsupported GeoJSON type %q", env.Type)
	}

	g := &Geometry{Payload: json.RawMessage(bytes.Clone(data))}
	for i, raw := range raws {
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var t geom.T
		if err := geojson.Unmarshal(raw, &t); err != nil {
			return nil, eris.Wrapf(ErrMalformed, "geometry %d: %v", i, err)
		}
		switch t.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
		default:
			return nil, eris.Wrapf(ErrMalformed, "geometry %d is %T, want polygon", i, t)
		}
		g.Features++
	}

	return g, nil
}

// EncodeFeatureCollection renders polygons as a GeoJSON FeatureCollection, one feature per polygon.
func EncodeFeatureCollection(polys []*geom.MultiPolygon, props map[string]any) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(polys))}
	for _, p := range polys {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   p,
			Properties: props,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode feature collection")
	}
	return data, nil
}
