package routes

import (
	"io"
	"os"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shiptrace/internal/controllers"
	"shiptrace/internal/middleware"
)

// Deps are the handlers and settings the router is built from.
type Deps struct {
	Shipments *controllers.ShipmentController
	Tracking  *controllers.TrackingController
	Sockets   *controllers.TrackingSocketController
	Auth      *controllers.AuthController
	Geocode   *controllers.GeocodeController
	Tokens    *middleware.Tokens
	AdminKey  string
	LogWriter io.Writer

	// LoginLimiter throttles /api/login per client IP when set.
	LoginLimiter *middleware.RateLimiter
}

func SetupRouter(d Deps) *gin.Engine {
	if d.LogWriter == nil {
		d.LogWriter = os.Stdout
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(ginlog.SetLogger(
		ginlog.WithWriter(d.LogWriter),
		ginlog.WithUTC(true),
		ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
	))
	r.Use(middleware.Metrics())
	r.Use(gin.Recovery())

	AuthRoutes(r, d)
	PublicRoutes(r, d)
	AdminRoutes(r, d)
	WebSocketRoutes(r, d)

	r.GET("/healthz", d.Tracking.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
