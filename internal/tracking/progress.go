// Package tracking derives a shipment's progress fields from a mutation
// intent. Every write path (create, patch, advance, set-location, route
// regeneration) goes through Apply so the derived fields never drift
// between endpoints.
package tracking

import (
	"errors"
	"strings"
	"time"

	"shiptrace/internal/models"
)

// ErrAlreadyAtFinalCheckpoint is returned when an advance is requested on a
// shipment that is already at its last checkpoint.
var ErrAlreadyAtFinalCheckpoint = errors.New("already at final checkpoint")

// ProgressTolerance is how many percentage points an explicit progress
// override may differ from the index-derived value before callers warn.
const ProgressTolerance = 10

// Default history notes.
const (
	NoteArrivedCheckpoint = "Arrived checkpoint"
	NoteLocationUpdated   = "Admin updated destination location"
	NoteCityUpdated       = "Admin updated destination city"
)

// Mutation is a sparse intent. Zero values mean "not part of the intent".
type Mutation struct {
	// Route replaces the whole route before the index is resolved.
	Route []models.Checkpoint

	ExplicitIndex       *int
	DestinationCityHint string
	AdvanceOne          bool

	StatusHint          string
	ExplicitProgressPct *int

	NewLocation *models.GeoPoint
	HistoryCity string
	Note        string
	By          string
}

// Apply computes the next state of current under m, stamped with now.
// current is never modified. The only failure is ErrAlreadyAtFinalCheckpoint,
// in which case the returned shipment equals current.
func Apply(current models.Shipment, m Mutation, now time.Time) (models.Shipment, error) {
	next := current.Clone()
	if m.Route != nil {
		next.Route = append(next.Route[:0:0], m.Route...)
	}
	n := len(next.Route)

	// 1. index
	idx := ClampIndex(next.CurrentIndex, n)
	cityMatched := false
	if hint := strings.TrimSpace(m.DestinationCityHint); hint != "" {
		if i := MatchCity(next.Route, hint); i >= 0 {
			idx = i
			cityMatched = true
		}
	}
	advanced := false
	if m.AdvanceOne && m.ExplicitIndex == nil && strings.TrimSpace(m.DestinationCityHint) == "" {
		if current.CurrentIndex >= n-1 {
			return current, ErrAlreadyAtFinalCheckpoint
		}
		idx = ClampIndex(idx+1, n)
		advanced = true
	}
	if m.ExplicitIndex != nil {
		idx = ClampIndex(*m.ExplicitIndex, n)
	}

	// 2. status
	status := next.Status
	if hint := strings.TrimSpace(m.StatusHint); hint != "" {
		status = NormalizeStatus(hint)
	} else if advanced {
		switch {
		case idx == n-1:
			status = models.StatusDelivered
		case strings.EqualFold(status, models.StatusPending) || status == "":
			status = models.StatusShipped
		}
	}

	// 3 + 4. progress, with the delivered override winning over everything.
	pct := next.ProgressPct
	switch {
	case IsDelivered(status):
		if n > 0 {
			idx = n - 1
		}
		pct = 100
	case m.ExplicitProgressPct != nil:
		pct = clampPct(*m.ExplicitProgressPct)
	case n > 1:
		pct = Percent(idx, n)
	}
	next.CurrentIndex = idx
	next.Status = status
	next.ProgressPct = pct

	// 5. location
	switch {
	case m.NewLocation.Valid():
		next.CurrentLocation = m.NewLocation.Clone()
	case n > 0 && next.Route[idx].Location.Valid():
		next.CurrentLocation = next.Route[idx].Location.Clone()
	case next.OriginLocation().Valid():
		next.CurrentLocation = next.OriginLocation().Clone()
	}

	// 6. shipment date
	if strings.EqualFold(status, models.StatusShipped) && next.ShipmentDate == nil {
		t := now
		next.ShipmentDate = &t
	}

	// 7. history
	if entry, ok := historyEntry(next, m, advanced, cityMatched, now); ok {
		next.LocationHistory = append(next.LocationHistory, entry)
	}

	// 8. timestamps
	next.UpdatedAt = now
	next.LastUpdated = now
	return next, nil
}

func historyEntry(next models.Shipment, m Mutation, advanced, cityMatched bool, now time.Time) (models.HistoryEntry, bool) {
	city := strings.TrimSpace(m.HistoryCity)
	hasLocation := m.NewLocation.Valid()
	if !hasLocation && city == "" && !advanced {
		return models.HistoryEntry{}, false
	}

	entry := models.HistoryEntry{
		Timestamp: now,
		City:      city,
		Location:  next.CurrentLocation.Clone(),
		Note:      m.Note,
		By:        m.By,
	}
	if hasLocation {
		entry.Location = m.NewLocation.Clone()
	}
	if entry.City == "" && (advanced || cityMatched) && len(next.Route) > 0 {
		entry.City = next.Route[next.CurrentIndex].City
	}
	if entry.Note == "" {
		switch {
		case advanced:
			entry.Note = NoteArrivedCheckpoint
		case hasLocation:
			entry.Note = NoteLocationUpdated
		default:
			entry.Note = NoteCityUpdated
		}
	}
	return entry, true
}

// ClampIndex forces i into [0, max(0, n-1)].
func ClampIndex(i, n int) int {
	last := n - 1
	if last < 0 {
		last = 0
	}
	if i < 0 {
		return 0
	}
	if i > last {
		return last
	}
	return i
}

// Percent is round-half-up of idx/(n-1)*100. Callers must ensure n > 1.
func Percent(idx, n int) int {
	last := n - 1
	return (idx*200 + last) / (2 * last)
}

// MatchCity returns the position of the first checkpoint whose city starts
// with hint, ignoring case, or -1.
func MatchCity(route []models.Checkpoint, hint string) int {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return -1
	}
	for i, c := range route {
		city := strings.ToLower(c.City)
		if city != "" && strings.HasPrefix(city, hint) {
			return i
		}
	}
	return -1
}

// ProgressDivergence is the distance in points between the stored progress
// and the one derived from the index. Zero for routes too short to derive.
func ProgressDivergence(s models.Shipment) int {
	n := len(s.Route)
	if n < 2 || IsDelivered(s.Status) {
		return 0
	}
	d := s.ProgressPct - Percent(ClampIndex(s.CurrentIndex, n), n)
	if d < 0 {
		d = -d
	}
	return d
}

func clampPct(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
