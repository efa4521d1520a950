// Package metrics records storymap operation counters.
//
// Components depend on the Recorder interface; the Prometheus
// implementation is wired only by the composition root, and Nop is used
// everywhere else (tests included).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives operation outcomes.
type Recorder interface {
	PersistWrite(backend string, err error)
	Highlight(on bool)
	DiagramRoundTrip(op string, err error)
	BusyRejected()
}

// Nop discards everything.
type Nop struct{}

func (Nop) PersistWrite(string, error)     {}
func (Nop) Highlight(bool)                 {}
func (Nop) DiagramRoundTrip(string, error) {}
func (Nop) BusyRejected()                  {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// PrometheusRecorder implements Recorder with Prometheus counters.
type PrometheusRecorder struct {
	persistWrites *prometheus.CounterVec
	highlights    *prometheus.CounterVec
	roundTrips    *prometheus.CounterVec
	busy          prometheus.Counter
}

// NewPrometheusRecorder registers the storymap counters on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		persistWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storymap_persist_writes_total",
				Help: "Session state writes by storage backend and outcome",
			},
			[]string{"backend", "status"},
		),
		highlights: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storymap_highlight_commands_total",
				Help: "Highlight commands issued to the diagram engine",
			},
			[]string{"state"},
		),
		roundTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storymap_diagram_roundtrips_total",
				Help: "Diagram engine import/export round-trips by operation and outcome",
			},
			[]string{"op", "status"},
		),
		busy: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "storymap_busy_rejections_total",
				Help: "Diagram operations rejected because another was in flight",
			},
		),
	}
}

// PersistWrite counts a session state write.
func (p *PrometheusRecorder) PersistWrite(backend string, err error) {
	p.persistWrites.WithLabelValues(backend, status(err)).Inc()
}

// Highlight counts a highlight command.
func (p *PrometheusRecorder) Highlight(on bool) {
	p.highlights.WithLabelValues(strconv.FormatBool(on)).Inc()
}

// DiagramRoundTrip counts an import or export against the engine.
func (p *PrometheusRecorder) DiagramRoundTrip(op string, err error) {
	p.roundTrips.WithLabelValues(op, status(err)).Inc()
}

// BusyRejected counts a single-flight rejection.
func (p *PrometheusRecorder) BusyRejected() {
	p.busy.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes reg on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
