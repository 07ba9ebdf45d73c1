package models

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// PointType is the only GeoJSON geometry type a GeoPoint carries.
const PointType = "Point"

// GeoPoint is a GeoJSON point. Coordinates are always [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a GeoPoint from a longitude and latitude.
func NewPoint(lon, lat float64) *GeoPoint {
	return &GeoPoint{Type: PointType, Coordinates: [2]float64{lon, lat}}
}

// PointFromLatLng converts boundary input given as lat/lng into a GeoPoint.
func PointFromLatLng(lat, lng float64) *GeoPoint {
	return NewPoint(lng, lat)
}

func (p *GeoPoint) Lon() float64 { return p.Coordinates[0] }
func (p *GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Valid reports whether p is a well-formed point with finite, in-range coordinates.
func (p *GeoPoint) Valid() bool {
	if p == nil || p.Type != PointType {
		return false
	}
	lon, lat := p.Coordinates[0], p.Coordinates[1]
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// Clone returns a copy of p, or nil.
func (p *GeoPoint) Clone() *GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Equal compares two points by coordinates.
func (p *GeoPoint) Equal(o *GeoPoint) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Type == o.Type && p.Coordinates == o.Coordinates
}

// Geom converts the point into a go-geom point.
func (p *GeoPoint) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Coordinates[0], p.Coordinates[1]})
}

// Value stores the point as little-endian WKB so the column stays PostGIS compatible.
func (p GeoPoint) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, nil
	}
	return wkb.Marshal(p.Geom(), binary.LittleEndian)
}

// Scan reads a WKB point back from the database.
func (p *GeoPoint) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan GeoPoint: unsupported type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("scan GeoPoint: %w", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return fmt.Errorf("scan GeoPoint: expected point, got %T", g)
	}
	*p = GeoPoint{Type: PointType, Coordinates: [2]float64{pt.X(), pt.Y()}}
	return nil
}

// RouteLineGeoJSON renders the located checkpoints of a route as a GeoJSON
// LineString for map display. Routes with fewer than two located
// checkpoints have no line and yield nil.
func RouteLineGeoJSON(route []Checkpoint) (json.RawMessage, error) {
	flat := make([]float64, 0, 2*len(route))
	for _, c := range route {
		if !c.Location.Valid() {
			continue
		}
		flat = append(flat, c.Location.Coordinates[0], c.Location.Coordinates[1])
	}
	if len(flat) < 4 {
		return nil, nil
	}
	b, err := gjson.Marshal(geom.NewLineStringFlat(geom.XY, flat))
	if err != nil {
		return nil, fmt.Errorf("encode route line: %w", err)
	}
	return b, nil
}
