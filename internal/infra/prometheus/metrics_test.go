package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	if pb.Gauge != nil {
		return pb.GetGauge().GetValue()
	}
	return pb.GetCounter().GetValue()
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.LinkCreated(true)
	m.LinkCreated(false)
	m.LinkCreated(false)
	m.Resolved("ok")
	m.Swept(3)
	m.Swept(0)
	m.RequestStarted()
	m.RequestFinished("/s/:code", "GET", 302, 2*time.Millisecond)

	assert.Equal(t, 1.0, value(t, m.LinksCreatedTotal.WithLabelValues("alias")))
	assert.Equal(t, 2.0, value(t, m.LinksCreatedTotal.WithLabelValues("generated")))
	assert.Equal(t, 1.0, value(t, m.ResolvesTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, value(t, m.LinksSweptTotal))
	assert.Equal(t, 0.0, value(t, m.HTTPRequestsActive))
	assert.Equal(t, 1.0, value(t, m.HTTPRequestsTotal.WithLabelValues("/s/:code", "GET", "302")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LinkCreated(true)
		m.Resolved("Expired")
		m.ClickRecorded("Mobile")
		m.Swept(1)
		m.RequestStarted()
		m.RequestFinished("/health", "GET", 200, time.Millisecond)
	})
}
