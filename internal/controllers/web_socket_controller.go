package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/metrics"
	"shiptrace/internal/models"
	"shiptrace/internal/store"
)

const writeWait = 10 * time.Second

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tracking data is public; CORS is enforced on the REST side
	},
}

// trackingUpdate goes to every watcher of key, or only to target when set.
type trackingUpdate struct {
	key     string
	payload PublicShipment
	target  *websocket.Conn
}

// TrackingHub fans public shipment updates out to the websocket clients
// watching each tracking id.
type TrackingHub struct {
	clients   map[string]map[*websocket.Conn]bool
	broadcast chan trackingUpdate
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewTrackingHub creates a hub and starts its broadcast loop.
func NewTrackingHub(buffer int) *TrackingHub {
	if buffer <= 0 {
		buffer = 100
	}
	hub := &TrackingHub{
		clients:   make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan trackingUpdate, buffer),
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func hubKey(trackingID string) string {
	return strings.ToUpper(strings.TrimSpace(trackingID))
}

func (h *TrackingHub) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(h.clients[msg.key]))
			for conn := range h.clients[msg.key] {
				if msg.target == nil || msg.target == conn {
					conns = append(conns, conn)
				}
			}
			h.mu.Unlock()

			// only this goroutine writes to registered connections
			for _, conn := range conns {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg.payload); err != nil {
					logrus.WithError(err).WithFields(logrus.Fields{
						"tracking_id": msg.key,
						"conn_ptr":    fmt.Sprintf("%p", conn),
					}).Info("Dropping tracking client after failed write.")
					h.UnregisterClient(msg.key, conn)
					conn.Close()
				}
			}
		}
	}
}

// RegisterClient subscribes conn to updates for trackingID.
func (h *TrackingHub) RegisterClient(trackingID string, conn *websocket.Conn) {
	key := hubKey(trackingID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[key]; !ok {
		h.clients[key] = make(map[*websocket.Conn]bool)
	}
	h.clients[key][conn] = true
	metrics.LiveSubscribers.Inc()
	logrus.WithFields(logrus.Fields{
		"tracking_id": key,
		"conn_ptr":    fmt.Sprintf("%p", conn),
	}).Debug("Tracking client registered.")
}

// UnregisterClient removes conn. Safe to call more than once.
func (h *TrackingHub) UnregisterClient(trackingID string, conn *websocket.Conn) {
	key := hubKey(trackingID)
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[key]
	if !ok || !clients[conn] {
		return
	}
	delete(clients, conn)
	if len(clients) == 0 {
		delete(h.clients, key)
	}
	metrics.LiveSubscribers.Dec()
	logrus.WithFields(logrus.Fields{
		"tracking_id": key,
		"conn_ptr":    fmt.Sprintf("%p", conn),
	}).Debug("Tracking client unregistered.")
}

// Subscribers reports how many clients watch trackingID.
func (h *TrackingHub) Subscribers(trackingID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[hubKey(trackingID)])
}

// Publish queues the public view of s for its watchers. It never blocks:
// when the buffer is full the update is dropped.
func (h *TrackingHub) Publish(s models.Shipment) {
	if h == nil {
		return
	}
	msg := trackingUpdate{key: hubKey(s.TrackingID), payload: toPublic(s, false)}
	select {
	case <-h.done:
	case h.broadcast <- msg:
	default:
		metrics.LiveMessagesDropped.Inc()
		logrus.WithField("tracking_id", msg.key).Warn("Tracking broadcast channel full, dropping update.")
	}
}

// SendSnapshot queues s for conn alone. Unlike Publish it waits for room in
// the buffer, so a new watcher always gets its first state.
func (h *TrackingHub) SendSnapshot(ctx context.Context, conn *websocket.Conn, s models.Shipment) bool {
	msg := trackingUpdate{key: hubKey(s.TrackingID), payload: toPublic(s, false), target: conn}
	select {
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	case h.broadcast <- msg:
		return true
	}
}

// Close stops the broadcast loop and disconnects every client.
func (h *TrackingHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for key, clients := range h.clients {
			for conn := range clients {
				conn.Close()
				metrics.LiveSubscribers.Dec()
			}
			delete(h.clients, key)
		}
	})
}

// TrackingSocketController serves the live tracking feed.
type TrackingSocketController struct {
	Store store.ShipmentStore
	Hub   *TrackingHub
}

// HandleTrackingWebSocket streams public updates for one shipment. The
// client is registered before the record is re-read for the first snapshot,
// so no change committed after the upgrade is missed.
// @Router /ws/track [get]
// @Param trackingId query string true "Tracking id to watch"
func (tc *TrackingSocketController) HandleTrackingWebSocket(c *gin.Context) {
	trackingID := strings.TrimSpace(firstNonEmpty(c.Query("trackingId"), c.Query("id")))
	if trackingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trackingId required"})
		return
	}
	record, err := tc.Store.FindOne(c.Request.Context(), store.ByTrackingID(trackingID))
	if err != nil {
		respondStoreError(c, err, "Failed to fetch tracking")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	tc.Hub.RegisterClient(record.TrackingID, conn)
	defer tc.Hub.UnregisterClient(record.TrackingID, conn)

	ctx := c.Request.Context()
	latest, err := tc.Store.FindOne(ctx, store.ByTrackingID(record.TrackingID))
	if err != nil {
		logrus.WithError(err).WithField("tracking_id", record.TrackingID).Warn("Failed to re-read record for tracking snapshot.")
		return
	}
	if !tc.Hub.SendSnapshot(ctx, conn, latest) {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("tracking_id", record.TrackingID).Warn("Tracking WebSocket closed unexpectedly.")
			}
			return
		}
		// clients only listen; anything they send is ignored
	}
}
