package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metersToLonDeg converts an east-west distance on the equator to degrees.
func metersToLonDeg(m float64) float64 {
	return m / earthRadiusMeters * 180 / math.Pi
}

func straightLine(n int, spacing float64) []Coord {
	path := make([]Coord, n)
	for i := range path {
		path[i] = Coord{metersToLonDeg(float64(i) * spacing), 0}
	}
	return path
}

func TestSampleCollinearPath(t *testing.T) {
	path := straightLine(100, 10)
	got := Sample(path, "Houston", "Austin", SampleOptions{TargetPoints: 8, MinSpacingMeters: 80})

	require.LessOrEqual(t, len(got), 10)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "Houston", got[0].City)
	assert.Equal(t, path[0][0], got[0].Location.Lon())
	last := got[len(got)-1]
	assert.Equal(t, "Austin", last.City)
	assert.Equal(t, path[99][0], last.Location.Lon())

	interior := got[1 : len(got)-1]
	assert.LessOrEqual(t, len(interior), 8)
	prev := Coord{got[0].Location.Lon(), got[0].Location.Lat()}
	for i, c := range interior {
		assert.Equal(t, "Stop "+string(rune('1'+i)), c.City)
		cur := Coord{c.Location.Lon(), c.Location.Lat()}
		assert.GreaterOrEqual(t, ApproxMeters(prev, cur), 80.0-1e-6)
		prev = cur
	}
}

func TestSampleCapsInteriorStops(t *testing.T) {
	got := Sample(straightLine(23, 1000), "", "", SampleOptions{})
	assert.Len(t, got, 10)
	assert.Equal(t, "Origin", got[0].City)
	assert.Equal(t, "Stop 8", got[8].City)
	assert.Equal(t, "Destination", got[9].City)
}

func TestSampleShortPaths(t *testing.T) {
	assert.Empty(t, Sample(nil, "A", "B", SampleOptions{}))
	assert.NotNil(t, Sample(nil, "A", "B", SampleOptions{}))

	one := Sample([]Coord{{-97.74, 30.27}}, "A", "B", SampleOptions{})
	require.Len(t, one, 1)
	assert.Equal(t, "A", one[0].City)

	two := Sample([]Coord{{-97.74, 30.27}, {-96.8, 32.78}}, "A", "B", SampleOptions{})
	require.Len(t, two, 2)
	assert.Equal(t, "B", two[1].City)
}

func TestSampleSkipsDuplicateDestination(t *testing.T) {
	path := []Coord{{-97.74, 30.27}, {-97.74, 30.27}, {-97.74, 30.27}}
	got := Sample(path, "A", "B", SampleOptions{})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].City)
}

func TestSampleDropsClosePoints(t *testing.T) {
	got := Sample(straightLine(20, 4), "A", "B", SampleOptions{TargetPoints: 8, MinSpacingMeters: 80})
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].City)
	assert.Equal(t, "B", got[1].City)
}

func TestSampleRejectsNonFinite(t *testing.T) {
	for _, bad := range []Coord{{math.NaN(), 0}, {0, math.Inf(1)}, {math.Inf(-1), 1}} {
		path := []Coord{{0, 0}, bad, {1, 1}}
		assert.Empty(t, Sample(path, "A", "B", SampleOptions{}))
	}
}

func TestSampleLocationsAreLonLat(t *testing.T) {
	got := Sample([]Coord{{-118.24, 34.05}, {-96.8, 32.78}}, "LA", "Dallas", SampleOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, [2]float64{-118.24, 34.05}, got[0].Location.Coordinates)
	assert.True(t, got[1].Location.Valid())
}

func TestApproxMeters(t *testing.T) {
	assert.Zero(t, ApproxMeters(Coord{10, 10}, Coord{10, 10}))
	// one degree of latitude
	assert.InDelta(t, 111195, ApproxMeters(Coord{0, 0}, Coord{0, 1}), 1)
	assert.InDelta(t, 100, ApproxMeters(Coord{0, 0}, Coord{metersToLonDeg(100), 0}), 1e-6)
}

func TestDecodePolyline(t *testing.T) {
	got, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, got, 3)

	want := []Coord{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}
	for i := range want {
		assert.InDelta(t, want[i][0], got[i][0], 1e-6)
		assert.InDelta(t, want[i][1], got[i][1], 1e-6)
	}
}

func TestDecodePolylineEmpty(t *testing.T) {
	got, err := DecodePolyline("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
