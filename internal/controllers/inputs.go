package controllers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"shiptrace/internal/models"
)

// LooseNumber accepts a JSON number or a numeric string. Anything else
// (including null and malformed text) leaves it unset instead of failing
// the whole request.
type LooseNumber struct {
	Value float64
	Valid bool
}

func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	*n = LooseNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = LooseNumber{Value: v, Valid: true}
	return nil
}

// Int truncates toward zero, saturating at the int range; nil when unset.
func (n LooseNumber) Int() *int {
	if !n.Valid {
		return nil
	}
	var i int
	switch v := math.Trunc(n.Value); {
	case v >= math.MaxInt:
		i = math.MaxInt
	case v <= math.MinInt:
		i = math.MinInt
	default:
		i = int(v)
	}
	return &i
}

func (n LooseNumber) Float() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// LooseTime accepts RFC 3339 timestamps and plain dates. Invalid or empty
// values leave it unset; Present reports whether the key was sent at all.
type LooseTime struct {
	Time    *time.Time
	Present bool
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func (t *LooseTime) UnmarshalJSON(b []byte) error {
	*t = LooseTime{Present: true}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			u := parsed.UTC()
			t.Time = &u
			return nil
		}
	}
	return nil
}

// destinationInput is a destination plus the flat "city" admins use to jump
// the shipment to a matching checkpoint.
type destinationInput struct {
	models.Destination
	City string `json:"city"`
}

// createInput accepts nested origin/destination objects or the flat form
// fields the admin console posts.
type createInput struct {
	TrackingID         string      `json:"trackingId"`
	ServiceType        string      `json:"serviceType"`
	ShipmentDetails    string      `json:"shipmentDetails"`
	ProductDescription string      `json:"productDescription"`
	Product            string      `json:"product"`
	Quantity           LooseNumber `json:"quantity"`
	WeightKg           LooseNumber `json:"weightKg"`
	Description        string      `json:"description"`
	ImageURL           string      `json:"imageUrl"`
	Image              string      `json:"image"`
	UpdatedBy          string      `json:"updatedBy"`

	Origin            *models.Origin `json:"origin"`
	OriginName        string         `json:"originName"`
	OriginAddressFull string         `json:"originAddressFull"`
	OriginCity        string         `json:"originCity"`
	OriginState       string         `json:"originState"`
	OriginZip         string         `json:"originZip"`
	OriginLat         LooseNumber    `json:"originLat"`
	OriginLng         LooseNumber    `json:"originLng"`
	OriginWarehouse   string         `json:"originWarehouse"`

	Destination              *destinationInput `json:"destination"`
	ReceiverName             string            `json:"receiverName"`
	CustomerName             string            `json:"customerName"`
	ReceiverEmail            string            `json:"receiverEmail"`
	CustomerEmail            string            `json:"customerEmail"`
	DestAddressFull          string            `json:"destAddressFull"`
	DestCity                 string            `json:"destCity"`
	DestState                string            `json:"destState"`
	DestZip                  string            `json:"destZip"`
	DestLat                  LooseNumber       `json:"destLat"`
	DestLng                  LooseNumber       `json:"destLng"`
	DestExpectedDeliveryDate LooseTime         `json:"destExpectedDeliveryDate"`
	DestinationCity          string            `json:"destinationCity"`

	// Route, when non-empty, is used as is. Otherwise Path (a GeoJSON line
	// or an encoded polyline) is sampled, and failing that a route is
	// generated from the origin and destination points.
	Route []models.Checkpoint `json:"route"`
	Path  json.RawMessage     `json:"path"`

	CurrentIndex         LooseNumber           `json:"currentIndex"`
	CurrentLocation      *models.GeoPoint      `json:"currentLocation"`
	Status               string                `json:"status"`
	InitialStatus        string                `json:"initialStatus"`
	ShipmentDate         LooseTime             `json:"shipmentDate"`
	ExpectedDeliveryDate LooseTime             `json:"expectedDeliveryDate"`
	LocationHistory      []models.HistoryEntry `json:"locationHistory"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func pointFromLatLng(lat, lng LooseNumber) *models.GeoPoint {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	p := models.PointFromLatLng(lat.Value, lng.Value)
	if !p.Valid() {
		return nil
	}
	return p
}

func (in *createInput) origin() models.Origin {
	if in.Origin != nil {
		return *in.Origin
	}
	return models.Origin{
		Name: strings.TrimSpace(in.OriginName),
		Address: models.Address{
			Full:  strings.TrimSpace(in.OriginAddressFull),
			City:  strings.TrimSpace(in.OriginCity),
			State: strings.TrimSpace(in.OriginState),
			Zip:   strings.TrimSpace(in.OriginZip),
		},
		Location: pointFromLatLng(in.OriginLat, in.OriginLng),
	}
}

func (in *createInput) destination() models.Destination {
	if in.Destination != nil {
		d := in.Destination.Destination
		if d.Address.City == "" {
			d.Address.City = strings.TrimSpace(in.Destination.City)
		}
		return d
	}
	expected := in.DestExpectedDeliveryDate.Time
	if expected == nil {
		expected = in.ExpectedDeliveryDate.Time
	}
	return models.Destination{
		ReceiverName:  firstNonEmpty(in.ReceiverName, in.CustomerName),
		ReceiverEmail: firstNonEmpty(in.ReceiverEmail, in.CustomerEmail),
		Address: models.Address{
			Full:  strings.TrimSpace(in.DestAddressFull),
			City:  firstNonEmpty(in.DestCity, in.DestinationCity),
			State: strings.TrimSpace(in.DestState),
			Zip:   strings.TrimSpace(in.DestZip),
		},
		Location:             pointFromLatLng(in.DestLat, in.DestLng),
		ExpectedDeliveryDate: expected,
	}
}

// patchInput is the set of fields an admin may change on an existing record.
type patchInput struct {
	ServiceType        *string     `json:"serviceType"`
	ShipmentDetails    *string     `json:"shipmentDetails"`
	ProductDescription *string     `json:"productDescription"`
	Quantity           LooseNumber `json:"quantity"`
	WeightKg           LooseNumber `json:"weightKg"`
	Description        *string     `json:"description"`
	Image              *string     `json:"image"`
	ImageURL           *string     `json:"imageUrl"`

	ShipmentDate         LooseTime `json:"shipmentDate"`
	ExpectedDeliveryDate LooseTime `json:"expectedDeliveryDate"`

	Status          *string             `json:"status"`
	ProgressPct     LooseNumber         `json:"progressPct"`
	CurrentIndex    LooseNumber         `json:"currentIndex"`
	CurrentLocation *models.GeoPoint    `json:"currentLocation"`
	Route           []models.Checkpoint `json:"route"`

	Origin      *models.Origin    `json:"origin"`
	Destination *destinationInput `json:"destination"`
}

func (p *patchInput) empty() bool {
	return p.ServiceType == nil && p.ShipmentDetails == nil && p.ProductDescription == nil &&
		!p.Quantity.Valid && !p.WeightKg.Valid && p.Description == nil &&
		p.Image == nil && p.ImageURL == nil &&
		!p.ShipmentDate.Present && !p.ExpectedDeliveryDate.Present &&
		p.Status == nil && !p.ProgressPct.Valid && !p.CurrentIndex.Valid &&
		p.CurrentLocation == nil && len(p.Route) == 0 &&
		p.Origin == nil && p.Destination == nil
}

type locationInput struct {
	Lat  LooseNumber `json:"lat"`
	Lng  LooseNumber `json:"lng"`
	City string      `json:"city"`
	Note string      `json:"note"`
}
