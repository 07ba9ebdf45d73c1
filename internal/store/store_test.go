package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shiptrace/internal/models"
)

func seed(t *testing.T, s *MemoryStore, ids ...string) []models.Shipment {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Shipment, 0, len(ids))
	for i, id := range ids {
		sh := models.Shipment{TrackingID: id, Status: models.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.Insert(context.Background(), &sh))
		out = append(out, sh)
	}
	return out
}

func TestMemoryInsertAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	got := seed(t, s, "AAA111", "BBB222")
	assert.Equal(t, uint(1), got[0].ID)
	assert.Equal(t, uint(2), got[1].ID)

	dup := models.Shipment{TrackingID: "AAA111"}
	assert.ErrorIs(t, s.Insert(context.Background(), &dup), ErrDuplicateTrackingID)
}

func TestMemoryLookupPrecedence(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "abc123", "ABC123", "2")
	ctx := context.Background()

	sh, err := s.FindOne(ctx, ByRef("ABC123"))
	require.NoError(t, err)
	assert.Equal(t, "ABC123", sh.TrackingID, "exact match wins over case-insensitive")

	sh, err = s.FindOne(ctx, ByRef("Abc123"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", sh.TrackingID, "case-insensitive picks the oldest record")

	sh, err = s.FindOne(ctx, ByRef("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", sh.TrackingID, "exact tracking id beats record id")

	sh, err = s.FindOne(ctx, ByRef("1"))
	require.NoError(t, err)
	assert.Equal(t, uint(1), sh.ID)

	_, err = s.FindOne(ctx, Lookup{Ref: "1"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindOne(ctx, Lookup{Ref: "Abc123"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindOne(ctx, ByRef(""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFindOneAndUpdate(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "TRACK1")
	ctx := context.Background()

	got, err := s.FindOneAndUpdate(ctx, ByTrackingID("track1"), func(sh *models.Shipment) error {
		sh.Status = models.StatusShipped
		sh.ID = 99
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, got.Status)
	assert.Equal(t, uint(1), got.ID)

	stored, err := s.FindOne(ctx, ByRef("TRACK1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, stored.Status)
}

func TestMemoryFindOneAndUpdateAbort(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "TRACK1")
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := s.FindOneAndUpdate(ctx, ByRef("TRACK1"), func(sh *models.Shipment) error {
		sh.Status = models.StatusDelivered
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.FindOne(ctx, ByRef("TRACK1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	_, err = s.FindOneAndUpdate(ctx, ByRef("missing"), func(*models.Shipment) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateRejectsDuplicateTrackingID(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "ONE", "TWO")
	_, err := s.FindOneAndUpdate(context.Background(), ByRef("TWO"), func(sh *models.Shipment) error {
		sh.TrackingID = "ONE"
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicateTrackingID)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	sh := models.Shipment{TrackingID: "X", Route: []models.Checkpoint{{City: "A"}}}
	require.NoError(t, s.Insert(context.Background(), &sh))

	got, err := s.FindOne(context.Background(), ByRef("X"))
	require.NoError(t, err)
	got.Route[0].City = "changed"

	again, err := s.FindOne(context.Background(), ByRef("X"))
	require.NoError(t, err)
	assert.Equal(t, "A", again.Route[0].City)
}

func TestMemoryDelete(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "ONE", "TWO")
	ctx := context.Background()

	deleted, err := s.FindOneAndDelete(ctx, ByRef("one"))
	require.NoError(t, err)
	assert.Equal(t, "ONE", deleted.TrackingID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.FindOneAndDelete(ctx, ByRef("ONE"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = fmt.Sprintf("T%d", i)
	}
	seed(t, s, ids...)
	ctx := context.Background()

	page1, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "T4", page1[0].TrackingID)
	assert.Equal(t, "T3", page1[1].TrackingID)

	page3, err := s.List(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "T0", page3[0].TrackingID)

	empty, err := s.List(ctx, 9, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestOffsetSaturates(t *testing.T) {
	assert.Equal(t, 0, offset(-5, 10))
	assert.Equal(t, 20, offset(3, 10))
	assert.Equal(t, 0, offset(3, 0))
	assert.Equal(t, math.MaxInt, offset(math.MaxInt, 1000))

	s := NewMemoryStore()
	seed(t, s, "ONE")
	out, err := s.List(context.Background(), math.MaxInt, 1000)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.FindOne(ctx, ByRef("x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound, "op"), ErrNotFound)
	assert.ErrorIs(t, translate(&pq.Error{Code: "23505"}, "op"), ErrDuplicateTrackingID)
	assert.ErrorIs(t, translate(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"}), "op"), ErrDuplicateTrackingID)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey, "op"), ErrDuplicateTrackingID)

	other := errors.New("connection reset")
	err := translate(other, "insert shipment")
	assert.ErrorIs(t, err, other)
	assert.EqualError(t, err, "insert shipment: connection reset")
}
