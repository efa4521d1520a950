package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.PersistWrite("file", nil)
	rec.PersistWrite("file", nil)
	rec.PersistWrite("file", errors.New("disk full"))
	rec.Highlight(true)
	rec.Highlight(false)
	rec.Highlight(true)
	rec.DiagramRoundTrip("import", errors.New("bad xml"))
	rec.BusyRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.persistWrites.WithLabelValues("file", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.persistWrites.WithLabelValues("file", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.highlights.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.highlights.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.roundTrips.WithLabelValues("import", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.busy))
}

func TestNewPrometheusRecorder_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	rec.BusyRejected()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["storymap_busy_rejections_total"])
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, Nop{}, OrNop(nil))

	rec := NewPrometheusRecorder(prometheus.NewRegistry())
	assert.Same(t, rec, OrNop(rec))
}
