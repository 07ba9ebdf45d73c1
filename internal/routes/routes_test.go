package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiptrace/internal/controllers"
	"shiptrace/internal/middleware"
	"shiptrace/internal/routing"
	"shiptrace/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	shipments := store.NewMemoryStore()
	hub := controllers.NewTrackingHub(10)
	t.Cleanup(hub.Close)
	tokens := middleware.NewTokens("s3cret", time.Hour)

	return SetupRouter(Deps{
		Shipments: &controllers.ShipmentController{
			Store:  shipments,
			Routes: routing.NewGenerator(nil, routing.SampleOptions{}),
			Hub:    hub,
		},
		Tracking:  &controllers.TrackingController{Store: shipments},
		Sockets:   &controllers.TrackingSocketController{Store: shipments, Hub: hub},
		Auth:      &controllers.AuthController{Username: "admin", Password: "hunter2", Tokens: tokens},
		Geocode:   &controllers.GeocodeController{},
		Tokens:    tokens,
		AdminKey:  "letmein",
		LogWriter: io.Discard,
	})
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireCredentials(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/admin/records", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		serve(r, http.MethodGet, "/api/admin/records", "", map[string]string{middleware.AdminKeyHeader: "nope"}).Code)

	w := serve(r, http.MethodGet, "/api/admin/records", "", map[string]string{middleware.AdminKeyHeader: "letmein"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"limit":100}`, w.Body.String())
}

func TestLoginThenCreateAndTrack(t *testing.T) {
	r := newTestRouter(t)

	w := serve(r, http.MethodPost, "/api/login", `{"username":"admin","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := jsonField(t, w.Body.Bytes(), "token")

	w = serve(r, http.MethodPost, "/api/admin/records", `{"trackingId":"SHIP0001","destCity":"Austin"}`,
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(r, http.MethodGet, "/api/public/track?trackingId=ship0001", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SHIP0001", jsonField(t, w.Body.Bytes(), "trackingId"))

	w = serve(r, http.MethodPost, "/api/admin/records/SHIP0001/next", "",
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "", nil).Code)

	w := serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shiptrace_api_requests_total")

	w = serve(r, http.MethodGet, "/api/geocode?address=Austin", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func jsonField(t *testing.T, body []byte, key string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	v, _ := m[key].(string)
	return v
}
