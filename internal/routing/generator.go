package routing

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"shiptrace/internal/metrics"
	"shiptrace/internal/models"
)

// Endpoint is one end of a route to generate.
type Endpoint struct {
	Location *models.GeoPoint
	Label    string
}

// Generator builds checkpoint routes from a directions provider.
type Generator struct {
	Provider PathProvider
	Options  SampleOptions
}

// NewGenerator returns a Generator. A nil provider is allowed and makes every
// route empty, which is what happens when no API key is configured.
func NewGenerator(p PathProvider, opts SampleOptions) *Generator {
	return &Generator{Provider: p, Options: opts}
}

// Generate fetches and samples a route. It never fails: any problem is
// logged and yields an empty route.
func (g *Generator) Generate(ctx context.Context, origin, dest Endpoint) []models.Checkpoint {
	log := logrus.WithFields(logrus.Fields{
		"origin":      strings.TrimSpace(origin.Label),
		"destination": strings.TrimSpace(dest.Label),
	})

	if g == nil || g.Provider == nil {
		log.Warn("route generation skipped: no directions provider configured")
		return []models.Checkpoint{}
	}
	if !origin.Location.Valid() || !dest.Location.Valid() {
		log.Warn("route generation skipped: invalid origin/destination coordinates")
		return []models.Checkpoint{}
	}

	from := Coord{origin.Location.Lon(), origin.Location.Lat()}
	to := Coord{dest.Location.Lon(), dest.Location.Lat()}
	path, err := g.Provider.Directions(ctx, from, to)
	if err != nil {
		log.WithError(err).Warn("route generation failed")
		return []models.Checkpoint{}
	}
	if len(path) == 0 {
		log.Warn("route generation returned an empty path")
		return []models.Checkpoint{}
	}

	route := Sample(path, origin.Label, dest.Label, g.Options)
	metrics.RouteCheckpoints.Observe(float64(len(route)))
	log.WithFields(logrus.Fields{
		"path_points": len(path),
		"checkpoints": len(route),
	}).Info("route generated")
	return route
}
