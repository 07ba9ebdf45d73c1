package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(ShipmentMutations.WithLabelValues("next", "error"))
	RecordMutation("next", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(ShipmentMutations.WithLabelValues("next", "error")))

	before = testutil.ToFloat64(ShipmentMutations.WithLabelValues("next", "ok"))
	RecordMutation("next", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(ShipmentMutations.WithLabelValues("next", "ok")))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/healthz", "200"))
	RecordAPIRequest("GET", "/healthz", 200, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}

func TestRecordUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("directions", "error"))
	RecordUpstream("directions", time.Second, errors.New("503"))
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("directions", "error")))
}
