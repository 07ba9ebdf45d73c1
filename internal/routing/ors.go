package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"

	"shiptrace/internal/metrics"
)

// ErrUpstreamUnavailable wraps every failure talking to the directions or
// geocoding provider: transport errors, timeouts, non-2xx responses,
// unparseable bodies and an open circuit.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

const (
	DefaultORSBaseURL = "https://api.openrouteservice.org"
	DefaultORSProfile = "driving-car"
	defaultTimeout    = 10 * time.Second
)

// PathProvider returns the driving path between two points as [lon, lat] pairs.
type PathProvider interface {
	Directions(ctx context.Context, from, to Coord) ([]Coord, error)
}

// Geocoder resolves free text into the provider's raw GeoJSON response.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (json.RawMessage, error)
}

type ORSConfig struct {
	APIKey  string
	BaseURL string
	Profile string
	Timeout time.Duration
}

// ORSClient talks to OpenRouteService. Safe for concurrent use.
type ORSClient struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
	cb      *gobreaker.CircuitBreaker[[]byte]
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func NewORSClient(cfg ORSConfig) *ORSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultORSBaseURL
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultORSProfile
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	const name = "openrouteservice"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a 4xx is our request's fault, not the provider's
		IsSuccessful: func(err error) bool {
			var he *httpStatusError
			if errors.As(err, &he) {
				return he.Code < 500 && he.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &ORSClient{
		session: &http.Client{Timeout: cfg.Timeout},
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
		cb:      cb,
	}
}

func (o *ORSClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// fetch runs req through the breaker and returns the response body.
func (o *ORSClient) fetch(endpoint string, req *http.Request) ([]byte, error) {
	start := time.Now()
	body, err := o.cb.Execute(func() ([]byte, error) {
		resp, err := o.session.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= 400 {
			text := strings.TrimSpace(string(b))
			if len(text) > 1000 {
				text = text[:1000]
			}
			return nil, &httpStatusError{Code: resp.StatusCode, Body: text}
		}
		return b, nil
	})
	metrics.RecordUpstream(endpoint, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, endpoint, err)
	}
	return body, nil
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
	Format      string       `json:"format"`
}

type directionsResponse struct {
	Routes []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
	Features []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

// Directions fetches the driving path from -> to.
func (o *ORSClient) Directions(ctx context.Context, from, to Coord) ([]Coord, error) {
	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{from, to},
		Format:      "geojson",
	})
	if err != nil {
		return nil, fmt.Errorf("encode directions request: %w", err)
	}

	req, err := o.newRequest(ctx, http.MethodPost, o.baseURL+"/v2/directions/"+o.profile, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	body, err := o.fetch("directions", req)
	if err != nil {
		return nil, err
	}

	var decoded directionsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode directions response: %w", ErrUpstreamUnavailable, err)
	}

	var raw json.RawMessage
	switch {
	case len(decoded.Routes) > 0 && len(decoded.Routes[0].Geometry) > 0:
		raw = decoded.Routes[0].Geometry
	case len(decoded.Features) > 0 && len(decoded.Features[0].Geometry) > 0:
		raw = decoded.Features[0].Geometry
	default:
		return nil, fmt.Errorf("%w: no route geometry in response", ErrUpstreamUnavailable)
	}

	path, err := ParsePath(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return path, nil
}

// ParsePath accepts an encoded polyline string or a GeoJSON line geometry.
func ParsePath(raw json.RawMessage) ([]Coord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode geometry string: %w", err)
		}
		return DecodePolyline(encoded)
	}

	var g geom.T
	if err := gjson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}

	var coords []geom.Coord
	switch v := g.(type) {
	case *geom.LineString:
		coords = v.Coords()
	case *geom.MultiLineString:
		for i := 0; i < v.NumLineStrings(); i++ {
			coords = append(coords, v.LineString(i).Coords()...)
		}
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}

	out := make([]Coord, 0, len(coords))
	for _, c := range coords {
		out = append(out, Coord{c.X(), c.Y()})
	}
	return out, nil
}

// Geocode proxies /geocode/search and returns the provider's JSON untouched.
func (o *ORSClient) Geocode(ctx context.Context, text string) (json.RawMessage, error) {
	req, err := o.newRequest(ctx, http.MethodGet, o.baseURL+"/geocode/search", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("text", text)
	req.URL.RawQuery = q.Encode()

	body, err := o.fetch("geocode", req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: geocode response is not JSON", ErrUpstreamUnavailable)
	}
	return json.RawMessage(body), nil
}
