package controllers

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"shiptrace/internal/metrics"
	"shiptrace/internal/middleware"
	"shiptrace/internal/models"
	"shiptrace/internal/routing"
	"shiptrace/internal/store"
	"shiptrace/internal/tracking"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000

	trackingIDAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingIDLength      = 12
	maxTrackingIDAttempts = 5

	defaultServiceType = "standard"
)

// ShipmentController serves the admin record endpoints. Every write goes
// through tracking.Apply inside the store's atomic update.
type ShipmentController struct {
	Store  store.ShipmentStore
	Routes *routing.Generator
	Hub    *TrackingHub
	Now    func() time.Time
}

func (sc *ShipmentController) now() time.Time {
	if sc.Now != nil {
		return sc.Now().UTC()
	}
	return time.Now().UTC()
}

func newTrackingID() (string, error) {
	b := make([]byte, trackingIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = trackingIDAlphabet[int(b[i])%len(trackingIDAlphabet)]
	}
	return string(b), nil
}

// ListRecords returns one page of records, newest first.
// @Router /api/admin/records [get]
func (sc *ShipmentController) ListRecords(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil {
		limit = defaultPageLimit
	}
	limit = min(max(limit, 1), maxPageLimit)
	page = min(page, math.MaxInt/limit)

	ctx := c.Request.Context()
	items, err := sc.Store.List(ctx, page, limit)
	if err != nil {
		respondStoreError(c, err, "Failed to list records")
		return
	}
	total, err := sc.Store.Count(ctx)
	if err != nil {
		respondStoreError(c, err, "Failed to count records")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "limit": limit})
}

// GetRecord fetches one record by id or tracking id.
// @Router /api/admin/records/{id} [get]
func (sc *ShipmentController) GetRecord(c *gin.Context) {
	record, err := sc.Store.FindOne(c.Request.Context(), store.ByRef(c.Param("id")))
	if err != nil {
		respondStoreError(c, err, "Failed to fetch record")
		return
	}
	c.JSON(http.StatusOK, record)
}

// CreateRecord stores a new shipment. The route is taken from "route",
// sampled from "path", or generated from the origin and destination points,
// in that order.
// @Router /api/admin/records [post]
func (sc *ShipmentController) CreateRecord(c *gin.Context) {
	var in createInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	ctx := c.Request.Context()
	origin := in.origin()
	dest := in.destination()
	route, err := sc.resolveRoute(ctx, &in, origin, dest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path: " + err.Error()})
		return
	}

	now := sc.now()
	actor := firstNonEmpty(in.UpdatedBy, middleware.Actor(c))
	if dest.ExpectedDeliveryDate == nil {
		dest.ExpectedDeliveryDate = in.ExpectedDeliveryDate.Time
	}
	expected := in.ExpectedDeliveryDate.Time
	if expected == nil {
		expected = dest.ExpectedDeliveryDate
	}
	quantity := 1
	if q := in.Quantity.Int(); q != nil {
		quantity = *q
	}

	record := models.Shipment{
		TrackingID:           strings.ToUpper(strings.TrimSpace(in.TrackingID)),
		ServiceType:          firstNonEmpty(in.ServiceType, defaultServiceType),
		ShipmentDetails:      strings.TrimSpace(in.ShipmentDetails),
		ProductDescription:   firstNonEmpty(in.ProductDescription, in.Product),
		Product:              strings.TrimSpace(in.Product),
		Quantity:             quantity,
		WeightKg:             in.WeightKg.Float(),
		Description:          strings.TrimSpace(in.Description),
		ImageURL:             firstNonEmpty(in.ImageURL, in.Image),
		Origin:               datatypes.NewJSONType(origin),
		Destination:          datatypes.NewJSONType(dest),
		OriginWarehouse:      firstNonEmpty(in.OriginWarehouse, origin.Address.City),
		Route:                datatypes.JSONSlice[models.Checkpoint](route),
		LocationHistory:      datatypes.JSONSlice[models.HistoryEntry]{},
		ShipmentDate:         in.ShipmentDate.Time,
		ExpectedDeliveryDate: expected,
		CreatedAt:            now,
		UpdatedBy:            actor,
	}
	if len(in.LocationHistory) > 0 {
		record.LocationHistory = append(record.LocationHistory, in.LocationHistory...)
	}

	next, err := tracking.Apply(record, tracking.Mutation{
		ExplicitIndex: in.CurrentIndex.Int(),
		StatusHint:    firstNonEmpty(in.Status, in.InitialStatus, models.StatusPending),
		By:            actor,
	}, now)
	if err != nil {
		respondStoreError(c, err, "Failed to create record")
		return
	}
	// an explicit starting location is recorded without a history entry
	if in.CurrentLocation.Valid() {
		next.CurrentLocation = in.CurrentLocation.Clone()
	}

	err = sc.insert(ctx, &next)
	metrics.RecordMutation("create", err)
	if err != nil {
		respondStoreError(c, err, "Failed to create record")
		return
	}
	logrus.WithFields(logrus.Fields{
		"tracking_id": next.TrackingID,
		"checkpoints": len(next.Route),
		"status":      next.Status,
	}).Info("Shipment record created.")
	sc.Hub.Publish(next)
	c.JSON(http.StatusCreated, next)
}

// insert stores record, generating a tracking id when none was supplied.
// Generated ids are retried on collision; supplied ones are not.
func (sc *ShipmentController) insert(ctx context.Context, record *models.Shipment) error {
	generated := record.TrackingID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			id, err := newTrackingID()
			if err != nil {
				return err
			}
			record.TrackingID = id
		}
		err := sc.Store.Insert(ctx, record)
		if generated && errors.Is(err, store.ErrDuplicateTrackingID) && attempt < maxTrackingIDAttempts {
			continue
		}
		return err
	}
}

func (sc *ShipmentController) sampleOptions() routing.SampleOptions {
	if sc.Routes == nil {
		return routing.SampleOptions{}
	}
	return sc.Routes.Options
}

func routeLabels(origin models.Origin, dest models.Destination, warehouse string) (string, string) {
	return firstNonEmpty(origin.Address.City, warehouse), dest.Address.City
}

func (sc *ShipmentController) resolveRoute(ctx context.Context, in *createInput, origin models.Origin, dest models.Destination) ([]models.Checkpoint, error) {
	if len(in.Route) > 0 {
		return in.Route, nil
	}
	originLabel, destLabel := routeLabels(origin, dest, in.OriginWarehouse)
	if raw := bytes.TrimSpace(in.Path); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		path, err := routing.ParsePath(raw)
		if err != nil {
			return nil, err
		}
		return routing.Sample(path, originLabel, destLabel, sc.sampleOptions()), nil
	}
	return sc.Routes.Generate(ctx,
		routing.Endpoint{Location: origin.Location, Label: originLabel},
		routing.Endpoint{Location: dest.Location, Label: destLabel},
	), nil
}

// PatchRecord updates the record addressed by :id and returns it.
// @Router /api/admin/records/{id} [patch]
func (sc *ShipmentController) PatchRecord(c *gin.Context) {
	var in patchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if in.empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}
	updated, err := sc.patch(c.Request.Context(), store.ByRef(c.Param("id")), &in, middleware.Actor(c))
	if err != nil {
		respondStoreError(c, err, "Failed to update record")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// PatchByTrackingID applies {trackingId, updates} from the body.
// @Router /api/admin/records [patch]
func (sc *ShipmentController) PatchByTrackingID(c *gin.Context) {
	var body struct {
		TrackingID string     `json:"trackingId"`
		Updates    patchInput `json:"updates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(body.TrackingID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trackingId required"})
		return
	}
	if body.Updates.empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}
	updated, err := sc.patch(c.Request.Context(), store.ByTrackingID(body.TrackingID), &body.Updates, middleware.Actor(c))
	if err != nil {
		respondStoreError(c, err, "Failed to update record")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record updated successfully", "updatedRecord": updated})
}

func (sc *ShipmentController) patch(ctx context.Context, l store.Lookup, in *patchInput, by string) (models.Shipment, error) {
	now := sc.now()
	updated, err := sc.Store.FindOneAndUpdate(ctx, l, func(sh *models.Shipment) error {
		in.applyTo(sh)
		sh.UpdatedBy = by
		next, err := tracking.Apply(*sh, in.mutation(by), now)
		if err != nil {
			return err
		}
		*sh = next
		return nil
	})
	metrics.RecordMutation("patch", err)
	if err != nil {
		return updated, err
	}

	if in.Status != nil && !tracking.IsKnownStatus(*in.Status) {
		logrus.WithFields(logrus.Fields{
			"tracking_id": updated.TrackingID,
			"status":      updated.Status,
		}).Info("Stored free-text status.")
	}
	if in.ProgressPct.Valid {
		if d := tracking.ProgressDivergence(updated); d > tracking.ProgressTolerance {
			metrics.ProgressOverrideDivergence.Inc()
			logrus.WithFields(logrus.Fields{
				"tracking_id":   updated.TrackingID,
				"progress_pct":  updated.ProgressPct,
				"current_index": updated.CurrentIndex,
				"divergence":    d,
			}).Warn("Progress override diverges from checkpoint index.")
		}
	}
	sc.Hub.Publish(updated)
	return updated, nil
}

// applyTo copies the plain descriptive fields onto sh. Progress fields are
// left to the engine.
func (p *patchInput) applyTo(sh *models.Shipment) {
	if p.ServiceType != nil {
		sh.ServiceType = strings.TrimSpace(*p.ServiceType)
	}
	if p.ShipmentDetails != nil {
		sh.ShipmentDetails = strings.TrimSpace(*p.ShipmentDetails)
	}
	if p.ProductDescription != nil {
		sh.ProductDescription = strings.TrimSpace(*p.ProductDescription)
	}
	if q := p.Quantity.Int(); q != nil {
		sh.Quantity = *q
	}
	if w := p.WeightKg.Float(); w != nil {
		sh.WeightKg = w
	}
	if p.Description != nil {
		sh.Description = strings.TrimSpace(*p.Description)
	}
	if p.ImageURL != nil || p.Image != nil {
		var url, image string
		if p.ImageURL != nil {
			url = *p.ImageURL
		}
		if p.Image != nil {
			image = *p.Image
		}
		sh.ImageURL = firstNonEmpty(url, image)
	}
	if p.ShipmentDate.Present {
		sh.ShipmentDate = p.ShipmentDate.Time
	}
	if p.ExpectedDeliveryDate.Present {
		sh.ExpectedDeliveryDate = p.ExpectedDeliveryDate.Time
	}
	if p.Origin != nil {
		sh.Origin = datatypes.NewJSONType(*p.Origin)
	}
	if p.Destination != nil {
		sh.Destination = datatypes.NewJSONType(mergeDestination(sh.Destination.Data(), p.Destination))
	}
}

func mergeDestination(cur models.Destination, in *destinationInput) models.Destination {
	d := in.Destination
	if v := strings.TrimSpace(d.ReceiverName); v != "" {
		cur.ReceiverName = v
	}
	if v := strings.TrimSpace(d.ReceiverEmail); v != "" {
		cur.ReceiverEmail = v
	}
	if v := strings.TrimSpace(d.Address.Full); v != "" {
		cur.Address.Full = v
	}
	if v := firstNonEmpty(d.Address.City, in.City); v != "" {
		cur.Address.City = v
	}
	if v := strings.TrimSpace(d.Address.State); v != "" {
		cur.Address.State = v
	}
	if v := strings.TrimSpace(d.Address.Zip); v != "" {
		cur.Address.Zip = v
	}
	if d.Location.Valid() {
		cur.Location = d.Location.Clone()
	}
	if d.ExpectedDeliveryDate != nil {
		cur.ExpectedDeliveryDate = d.ExpectedDeliveryDate
	}
	return cur
}

// mutation is the engine intent carried by a patch.
func (p *patchInput) mutation(by string) tracking.Mutation {
	m := tracking.Mutation{
		ExplicitIndex:       p.CurrentIndex.Int(),
		ExplicitProgressPct: p.ProgressPct.Int(),
		By:                  by,
	}
	if p.Status != nil {
		m.StatusHint = *p.Status
	}
	if len(p.Route) > 0 {
		m.Route = p.Route
	}
	if p.CurrentLocation.Valid() {
		m.NewLocation = p.CurrentLocation
	}
	if p.Destination != nil {
		m.DestinationCityHint = strings.TrimSpace(p.Destination.City)
		m.HistoryCity = firstNonEmpty(p.Destination.Address.City, p.Destination.City)
		if p.Destination.Location.Valid() {
			m.NewLocation = p.Destination.Location
		}
	}
	return m
}

// DeleteRecord removes a record for good. The id comes from the path or
// the "id" query parameter.
// @Router /api/admin/records/{id} [delete]
func (sc *ShipmentController) DeleteRecord(c *gin.Context) {
	ref := firstNonEmpty(c.Param("id"), c.Query("id"))
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id in path or query"})
		return
	}
	deleted, err := sc.Store.FindOneAndDelete(c.Request.Context(), store.ByRef(ref))
	metrics.RecordMutation("delete", err)
	if err != nil {
		respondStoreError(c, err, "Failed to delete record")
		return
	}
	logrus.WithFields(logrus.Fields{
		"tracking_id": deleted.TrackingID,
		"by":          middleware.Actor(c),
	}).Info("Shipment record deleted.")
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted", "deleted": deleted})
}
