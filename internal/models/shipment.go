package models

import (
	"time"

	"gorm.io/datatypes"
)

// Canonical shipment statuses. Free text is tolerated for older records,
// but progress rules only key off these values (case-insensitively).
const (
	StatusPending        = "Pending"
	StatusOnHold         = "On Hold"
	StatusShipped        = "Shipped"
	StatusOutForDelivery = "Out for Delivery"
	StatusDelivered      = "Delivered"
	StatusException      = "Exception"
)

// Address is a postal address as entered by an admin.
type Address struct {
	Full  string `json:"full,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Zip   string `json:"zip,omitempty"`
}

// Origin is where a shipment departs from.
type Origin struct {
	Name     string    `json:"name,omitempty"`
	Address  Address   `json:"address"`
	Location *GeoPoint `json:"location"`
}

// Destination is where a shipment is headed and who receives it.
type Destination struct {
	ReceiverName         string     `json:"receiverName,omitempty"`
	ReceiverEmail        string     `json:"receiverEmail,omitempty"`
	Address              Address    `json:"address"`
	Location             *GeoPoint  `json:"location"`
	ExpectedDeliveryDate *time.Time `json:"expectedDeliveryDate"`
}

// Checkpoint is one labeled stop of a route. Owned by its shipment.
type Checkpoint struct {
	City     string     `json:"city"`
	Zip      string     `json:"zip,omitempty"`
	Location *GeoPoint  `json:"location"`
	ETA      *time.Time `json:"eta,omitempty"`
}

// HistoryEntry is one append-only audit record of a location change.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	City      string    `json:"city,omitempty"`
	Location  *GeoPoint `json:"location"`
	Note      string    `json:"note,omitempty"`
	By        string    `json:"by,omitempty"`
}

// Shipment is the persisted tracking record.
// Deletion is a hard delete, so there is no DeletedAt column.
type Shipment struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TrackingID string `gorm:"uniqueIndex;size:64;not null" json:"trackingId"`

	ServiceType        string   `json:"serviceType"`
	ShipmentDetails    string   `json:"shipmentDetails"`
	ProductDescription string   `json:"productDescription"`
	Product            string   `json:"product"`
	Quantity           int      `gorm:"default:1" json:"quantity"`
	WeightKg           *float64 `json:"weightKg"`
	Description        string   `json:"description"`
	ImageURL           string   `json:"imageUrl"`

	Origin          datatypes.JSONType[Origin]      `gorm:"type:jsonb" json:"origin"`
	Destination     datatypes.JSONType[Destination] `gorm:"type:jsonb" json:"destination"`
	OriginWarehouse string                          `json:"originWarehouse"`

	// Route, CurrentIndex, CurrentLocation, ProgressPct, Status and
	// ShipmentDate are maintained by the tracking engine.
	Route           datatypes.JSONSlice[Checkpoint]   `gorm:"type:jsonb" json:"route"`
	CurrentIndex    int                               `json:"currentIndex"`
	CurrentLocation *GeoPoint                         `gorm:"type:bytea" json:"currentLocation"`
	Status          string                            `gorm:"index;default:Pending" json:"status"`
	ProgressPct     int                               `json:"progressPct"`
	LocationHistory datatypes.JSONSlice[HistoryEntry] `gorm:"type:jsonb" json:"locationHistory"`

	ShipmentDate         *time.Time `json:"shipmentDate"`
	ExpectedDeliveryDate *time.Time `json:"expectedDeliveryDate"`

	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	UpdatedBy   string    `json:"updatedBy"`
}

// OriginLocation returns the origin point, if any.
func (s *Shipment) OriginLocation() *GeoPoint {
	return s.Origin.Data().Location
}

// LastIndex is the highest valid route index (0 for an empty route).
func (s *Shipment) LastIndex() int {
	if len(s.Route) == 0 {
		return 0
	}
	return len(s.Route) - 1
}

// Clone returns a deep copy of the engine-owned slices so a mutation on the
// copy never leaks into the original.
func (s Shipment) Clone() Shipment {
	c := s
	if s.Route != nil {
		c.Route = make(datatypes.JSONSlice[Checkpoint], len(s.Route))
		copy(c.Route, s.Route)
	}
	if s.LocationHistory != nil {
		c.LocationHistory = make(datatypes.JSONSlice[HistoryEntry], len(s.LocationHistory))
		copy(c.LocationHistory, s.LocationHistory)
	}
	c.CurrentLocation = s.CurrentLocation.Clone()
	return c
}
