package routing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiptrace/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ORSClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewORSClient(ORSConfig{APIKey: "test-key", BaseURL: srv.URL})
}

func TestDirectionsGeoJSONRoute(t *testing.T) {
	var gotBody directionsRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"routes":[{"geometry":{"type":"LineString","coordinates":[[-118.24,34.05],[-112.07,33.45],[-96.8,32.78]]}}]}`))
	})

	path, err := c.Directions(context.Background(), Coord{-118.24, 34.05}, Coord{-96.8, 32.78})
	require.NoError(t, err)
	assert.Equal(t, []Coord{{-118.24, 34.05}, {-112.07, 33.45}, {-96.8, 32.78}}, path)
	assert.Equal(t, "geojson", gotBody.Format)
	assert.Equal(t, [][2]float64{{-118.24, 34.05}, {-96.8, 32.78}}, gotBody.Coordinates)
}

func TestDirectionsEncodedPolyline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"geometry":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"}]}`))
	})

	path, err := c.Directions(context.Background(), Coord{0, 0}, Coord{1, 1})
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.InDelta(t, -120.2, path[0][0], 1e-6)
	assert.InDelta(t, 38.5, path[0][1], 1e-6)
}

func TestDirectionsFeatureCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}]}`))
	})

	path, err := c.Directions(context.Background(), Coord{1, 2}, Coord{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []Coord{{1, 2}, {3, 4}}, path)
}

func TestDirectionsFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"no geometry": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[]}`))
		},
		"point geometry": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"routes":[{"geometry":{"type":"Point","coordinates":[1,2]}}]}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.Directions(context.Background(), Coord{0, 0}, Coord{1, 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		})
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Directions(context.Background(), Coord{0, 0}, Coord{1, 1})
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
	}
	_, err := c.Directions(context.Background(), Coord{0, 0}, Coord{1, 1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestClientErrorsDoNotOpenCircuit(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 7; i++ {
		_, err := c.Directions(context.Background(), Coord{0, 0}, Coord{1, 1})
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, int32(7), hits.Load())
}

func TestGeocodePassesThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "1600 Main St, Dallas", r.URL.Query().Get("text"))
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-96.8,32.78]}}]}`))
	})

	raw, err := c.Geocode(context.Background(), "1600 Main St, Dallas")
	require.NoError(t, err)
	assert.JSONEq(t, `{"features":[{"geometry":{"coordinates":[-96.8,32.78]}}]}`, string(raw))
}

func TestGeocodeUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

type fakeProvider struct {
	path []Coord
	err  error
	from Coord
	to   Coord
}

func (f *fakeProvider) Directions(_ context.Context, from, to Coord) ([]Coord, error) {
	f.from, f.to = from, to
	return f.path, f.err
}

func TestGeneratorSamplesProviderPath(t *testing.T) {
	p := &fakeProvider{path: straightLine(50, 1000)}
	g := NewGenerator(p, SampleOptions{})

	route := g.Generate(context.Background(),
		Endpoint{Location: models.PointFromLatLng(0, 0), Label: "Quito"},
		Endpoint{Location: models.PointFromLatLng(0, 0.44), Label: "Cayambe"},
	)
	require.NotEmpty(t, route)
	assert.LessOrEqual(t, len(route), 10)
	assert.Equal(t, "Quito", route[0].City)
	assert.Equal(t, "Cayambe", route[len(route)-1].City)
	assert.Equal(t, Coord{0.44, 0}, p.to)
}

func TestGeneratorDegradesToEmpty(t *testing.T) {
	valid := Endpoint{Location: models.NewPoint(-97.74, 30.27), Label: "Austin"}
	cases := map[string]struct {
		g      *Generator
		origin Endpoint
	}{
		"nil provider":     {NewGenerator(nil, SampleOptions{}), valid},
		"provider error":   {NewGenerator(&fakeProvider{err: ErrUpstreamUnavailable}, SampleOptions{}), valid},
		"empty path":       {NewGenerator(&fakeProvider{}, SampleOptions{}), valid},
		"missing origin":   {NewGenerator(&fakeProvider{path: straightLine(3, 100)}, SampleOptions{}), Endpoint{Label: "?"}},
		"out of range lat": {NewGenerator(&fakeProvider{path: straightLine(3, 100)}, SampleOptions{}), Endpoint{Location: models.NewPoint(0, 95)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			route := tc.g.Generate(context.Background(), tc.origin, valid)
			assert.NotNil(t, route)
			assert.Empty(t, route)
		})
	}
}

func TestGeneratorWithUnavailableUpstream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	g := NewGenerator(c, SampleOptions{})
	route := g.Generate(context.Background(),
		Endpoint{Location: models.NewPoint(-118.24, 34.05), Label: "Los Angeles"},
		Endpoint{Location: models.NewPoint(-96.8, 32.78), Label: "Dallas"},
	)
	assert.Empty(t, route)
}
