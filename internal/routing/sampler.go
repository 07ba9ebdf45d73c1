// Package routing turns raw driving paths into the short list of labeled
// checkpoints a shipment travels through, and fetches those paths from
// OpenRouteService.
package routing

import (
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-polyline"

	"shiptrace/internal/models"
)

// earthRadiusMeters is the sphere radius used by ApproxMeters.
const earthRadiusMeters = 6371000.0

const (
	DefaultTargetPoints     = 8
	DefaultMinSpacingMeters = 80.0

	// points closer than this to the last kept point are treated as the same place
	sameSpotMeters = 1.0
)

// Coord is a [longitude, latitude] pair.
type Coord [2]float64

func (c Coord) finite() bool {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SampleOptions tunes Sample. Zero values fall back to the defaults.
type SampleOptions struct {
	TargetPoints     int
	MinSpacingMeters float64
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.TargetPoints <= 0 {
		o.TargetPoints = DefaultTargetPoints
	}
	if o.MinSpacingMeters <= 0 {
		o.MinSpacingMeters = DefaultMinSpacingMeters
	}
	return o
}

// Sample reduces path to at most TargetPoints+2 checkpoints: the first point
// labeled originLabel, evenly strided interior stops at least
// MinSpacingMeters apart labeled "Stop n", and the last point labeled
// destLabel. An empty path or one with a non-finite coordinate yields an
// empty route.
func Sample(path []Coord, originLabel, destLabel string, opts SampleOptions) []models.Checkpoint {
	if len(path) == 0 {
		return []models.Checkpoint{}
	}
	for _, c := range path {
		if !c.finite() {
			return []models.Checkpoint{}
		}
	}
	opts = opts.withDefaults()
	if strings.TrimSpace(originLabel) == "" {
		originLabel = "Origin"
	}
	if strings.TrimSpace(destLabel) == "" {
		destLabel = "Destination"
	}

	n := len(path)
	out := make([]models.Checkpoint, 0, opts.TargetPoints+2)
	out = append(out, checkpoint(originLabel, path[0]))
	lastKept := path[0]

	step := n / opts.TargetPoints
	if step < 1 {
		step = 1
	}
	stops := 0
	for i := step; i < n-1 && stops < opts.TargetPoints; i += step {
		if ApproxMeters(lastKept, path[i]) < opts.MinSpacingMeters {
			continue
		}
		stops++
		out = append(out, checkpoint(fmt.Sprintf("Stop %d", stops), path[i]))
		lastKept = path[i]
	}

	if n > 1 && ApproxMeters(lastKept, path[n-1]) >= sameSpotMeters {
		out = append(out, checkpoint(destLabel, path[n-1]))
	}
	return out
}

func checkpoint(label string, c Coord) models.Checkpoint {
	return models.Checkpoint{City: label, Location: models.NewPoint(c[0], c[1])}
}

// ApproxMeters is the equirectangular distance between a and b. Good enough
// for spacing checks over a few hundred kilometres.
func ApproxMeters(a, b Coord) float64 {
	const toRad = math.Pi / 180
	x := (b[0] - a[0]) * math.Cos((a[1]+b[1])/2*toRad) * toRad
	y := (b[1] - a[1]) * toRad
	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// DecodePolyline decodes a Google encoded polyline (1e5 precision) into
// [lon, lat] coordinates.
func DecodePolyline(encoded string) ([]Coord, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	out := make([]Coord, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, Coord{c[1], c[0]})
	}
	return out, nil
}
