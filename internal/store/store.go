// Package store persists shipment records.
package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"shiptrace/internal/models"
)

var (
	ErrNotFound            = errors.New("shipment not found")
	ErrDuplicateTrackingID = errors.New("tracking id already exists")
)

// Lookup identifies one record. Ref is matched against the tracking id
// exactly first, then against the record id when AllowID is set, then
// against the tracking id ignoring case when CaseInsensitive is set.
type Lookup struct {
	Ref             string
	CaseInsensitive bool
	AllowID         bool
}

// ByRef is the lookup used by the admin endpoints: tracking id or record id.
func ByRef(ref string) Lookup {
	return Lookup{Ref: strings.TrimSpace(ref), CaseInsensitive: true, AllowID: true}
}

// ByTrackingID matches the tracking id only, ignoring case.
func ByTrackingID(trackingID string) Lookup {
	return Lookup{Ref: strings.TrimSpace(trackingID), CaseInsensitive: true}
}

func (l Lookup) id() (uint, bool) {
	if !l.AllowID {
		return 0, false
	}
	id, err := strconv.ParseUint(l.Ref, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// UpdateFunc mutates a record in place. Returning an error aborts the write.
type UpdateFunc func(*models.Shipment) error

// ShipmentStore is the record store. FindOneAndUpdate is an atomic
// read-modify-write: fn sees the current record and nothing else writes the
// record until fn returns and the result is saved.
type ShipmentStore interface {
	Insert(ctx context.Context, s *models.Shipment) error
	FindOne(ctx context.Context, l Lookup) (models.Shipment, error)
	FindOneAndUpdate(ctx context.Context, l Lookup, fn UpdateFunc) (models.Shipment, error)
	FindOneAndDelete(ctx context.Context, l Lookup) (models.Shipment, error)
	List(ctx context.Context, page, limit int) ([]models.Shipment, error)
	Count(ctx context.Context) (int64, error)
}

// offset saturates at math.MaxInt instead of overflowing.
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}
