package controllers

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"shiptrace/internal/models"
)

// PublicHistoryEntry is a history entry stripped of location and actor.
type PublicHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	City      string    `json:"city"`
	Note      string    `json:"note"`
}

type PublicDestination struct {
	ReceiverName         string           `json:"receiverName"`
	ReceiverEmail        string           `json:"receiverEmail,omitempty"`
	Address              models.Address   `json:"address"`
	Location             *models.GeoPoint `json:"location"`
	ExpectedDeliveryDate *time.Time       `json:"expectedDeliveryDate"`
}

// PublicShipment is what anyone holding a tracking id may see.
type PublicShipment struct {
	TrackingID           string               `json:"trackingId"`
	ServiceType          string               `json:"serviceType"`
	ShipmentDetails      string               `json:"shipmentDetails"`
	ShipmentDate         *time.Time           `json:"shipmentDate"`
	ProductDescription   string               `json:"productDescription"`
	Quantity             int                  `json:"quantity"`
	WeightKg             *float64             `json:"weightKg"`
	Description          string               `json:"description"`
	Origin               models.Origin        `json:"origin"`
	OriginWarehouse      string               `json:"originWarehouse"`
	Destination          PublicDestination    `json:"destination"`
	Route                []models.Checkpoint  `json:"route"`
	RouteLine            json.RawMessage      `json:"routeLine,omitempty"`
	CurrentIndex         int                  `json:"currentIndex"`
	CurrentLocation      *models.GeoPoint     `json:"currentLocation"`
	LocationHistory      []PublicHistoryEntry `json:"locationHistory"`
	Status               string               `json:"status"`
	LastUpdated          time.Time            `json:"lastUpdated"`
	CreatedAt            time.Time            `json:"createdAt"`
	ProgressPct          int                  `json:"progressPct"`
	ExpectedDeliveryDate *time.Time           `json:"expectedDeliveryDate"`
	ImageURL             string               `json:"imageUrl"`
}

// toPublic projects a record for the tracking page. The receiver's email is
// only included when exposePrivate is set.
func toPublic(s models.Shipment, exposePrivate bool) PublicShipment {
	dest := s.Destination.Data()
	pub := PublicShipment{
		TrackingID:         s.TrackingID,
		ServiceType:        s.ServiceType,
		ShipmentDetails:    s.ShipmentDetails,
		ShipmentDate:       s.ShipmentDate,
		ProductDescription: firstNonEmpty(s.ProductDescription, s.Product),
		Quantity:           s.Quantity,
		WeightKg:           s.WeightKg,
		Description:        s.Description,
		Origin:             s.Origin.Data(),
		OriginWarehouse:    s.OriginWarehouse,
		Destination: PublicDestination{
			ReceiverName:         dest.ReceiverName,
			Address:              dest.Address,
			Location:             dest.Location,
			ExpectedDeliveryDate: dest.ExpectedDeliveryDate,
		},
		Route:                make([]models.Checkpoint, len(s.Route)),
		CurrentIndex:         s.CurrentIndex,
		CurrentLocation:      s.CurrentLocation,
		LocationHistory:      make([]PublicHistoryEntry, 0, len(s.LocationHistory)),
		Status:               s.Status,
		LastUpdated:          s.LastUpdated,
		CreatedAt:            s.CreatedAt,
		ProgressPct:          s.ProgressPct,
		ExpectedDeliveryDate: s.ExpectedDeliveryDate,
		ImageURL:             s.ImageURL,
	}
	copy(pub.Route, s.Route)
	if exposePrivate {
		pub.Destination.ReceiverEmail = dest.ReceiverEmail
	}
	if pub.ExpectedDeliveryDate == nil {
		pub.ExpectedDeliveryDate = dest.ExpectedDeliveryDate
	}
	if pub.Status == "" {
		pub.Status = models.StatusPending
	}
	if pub.LastUpdated.IsZero() {
		pub.LastUpdated = s.UpdatedAt
	}
	if pub.CurrentLocation == nil && s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Route) {
		pub.CurrentLocation = s.Route[s.CurrentIndex].Location
	}
	for _, h := range s.LocationHistory {
		pub.LocationHistory = append(pub.LocationHistory, PublicHistoryEntry{
			Timestamp: h.Timestamp,
			City:      h.City,
			Note:      h.Note,
		})
	}

	line, err := models.RouteLineGeoJSON(s.Route)
	if err != nil {
		logrus.WithError(err).WithField("tracking_id", s.TrackingID).Warn("could not build route line")
	}
	pub.RouteLine = line
	return pub
}
