// Package session is the top-level orchestration of a storymap session: it
// wires the linkage store to the diagram engine, loads and saves the whole
// session, and replays highlights after every diagram reload.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DiagramEngine is the external diagram editor as seen by the session.
type DiagramEngine interface {
	ImportXML(ctx context.Context, xml string) error
	ExportXML(ctx context.Context) (string, error)
	SetHighlight(elementID string, on bool)
	ListElements() []linkage.ElementRef
	GetElement(id string) (linkage.ElementRef, bool)
}

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Diagram sources reported by Start.
const (
	SourceDefault = "default"
	SourceSaved   = "saved"
)

// StartReport describes what Start loaded.
type StartReport struct {
	// DiagramSource is SourceSaved when the persisted diagram imported,
	// SourceDefault otherwise.
	DiagramSource string
	// ImportError is set when a persisted diagram existed but could not be
	// imported. The session still starts on the default diagram.
	ImportError error
	// Reconciled counts stale link entries pruned by ReconcileOnLoad.
	Reconciled int
	// Highlighted counts elements highlighted by the replay.
	Highlighted int
}

// Options configures a Controller.
type Options struct {
	// DefaultDiagram is loaded on Start and by NewDiagram.
	DefaultDiagram string
	// ReconcileOnLoad prunes links to elements absent from the diagram
	// after every load.
	ReconcileOnLoad bool
	Logger          *zap.Logger
	Metrics         metrics.Recorder
}

// Controller owns the session: one store, one engine, one in-flight
// diagram round-trip at a time.
type Controller struct {
	store   *linkage.Store
	engine  DiagramEngine
	opts    Options
	log     *zap.Logger
	metrics metrics.Recorder

	// guard admits one diagram round-trip at a time; a second is rejected.
	guard *semaphore.Weighted

	mu    sync.RWMutex
	state State
}

// NewController wires store and engine. Call Start before anything else.
func NewController(store *linkage.Store, engine DiagramEngine, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		store:   store,
		engine:  engine,
		opts:    opts,
		log:     log,
		metrics: metrics.OrNop(opts.Metrics),
		guard:   semaphore.NewWeighted(1),
	}
}

// Store returns the session's linkage store.
func (c *Controller) Store() *linkage.Store {
	return c.store
}

// Engine returns the session's diagram engine.
func (c *Controller) Engine() DiagramEngine {
	return c.engine
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Start loads the default diagram, then the persisted one if any, and
// replays highlights. A corrupt persisted diagram is reported in the
// StartReport and never fails the start.
func (c *Controller) Start(ctx context.Context) (StartReport, error) {
	const op = "start session"
	var report StartReport

	if c.State() == Ready {
		return report, apperr.AlreadyStarted(op)
	}
	if err := c.acquire(op); err != nil {
		return report, err
	}
	defer c.guard.Release(1)

	if err := c.importXML(ctx, c.opts.DefaultDiagram); err != nil {
		return report, apperr.Import(op, err)
	}
	report.DiagramSource = SourceDefault

	if saved, ok := c.store.Diagram(); ok {
		if err := c.importXML(ctx, saved); err != nil {
			report.ImportError = apperr.Import(op, err)
			c.log.Warn("saved diagram could not be imported, using default", zap.Error(err))
		} else {
			report.DiagramSource = SourceSaved
		}
	}

	// Links are never pruned against the fallback diagram.
	if report.ImportError == nil {
		report.Reconciled = c.reconcile(ctx)
	}
	report.Highlighted = c.replayHighlights()

	c.mu.Lock()
	c.state = Ready
	c.mu.Unlock()

	c.log.Info("session started",
		zap.String("diagram", report.DiagramSource),
		zap.Int("highlighted", report.Highlighted),
		zap.Int("reconciled", report.Reconciled),
	)
	return report, nil
}

// NewDiagram replaces the live diagram with the default. Links are kept;
// those matching default element ids are highlighted again.
func (c *Controller) NewDiagram(ctx context.Context) error {
	const op = "new diagram"
	if err := c.ready(op); err != nil {
		return err
	}
	if err := c.acquire(op); err != nil {
		return err
	}
	defer c.guard.Release(1)

	if err := c.importXML(ctx, c.opts.DefaultDiagram); err != nil {
		return apperr.Import(op, err)
	}
	c.replayHighlights()
	return nil
}

// SaveDiagram exports the live diagram and stores it in the session.
// Nothing is written when the export fails.
func (c *Controller) SaveDiagram(ctx context.Context) error {
	const op = "save diagram"
	if err := c.ready(op); err != nil {
		return err
	}
	if err := c.acquire(op); err != nil {
		return err
	}
	defer c.guard.Release(1)

	xml, err := c.exportXML(ctx)
	if err != nil {
		return apperr.Serialization(op, err)
	}
	c.store.SetDiagram(ctx, xml)
	return nil
}

// ImportDiagram replaces the live diagram with xml and replays highlights.
// On failure the previous diagram and all link data stay as they were.
func (c *Controller) ImportDiagram(ctx context.Context, xml string) (int, error) {
	const op = "import diagram"
	if err := c.ready(op); err != nil {
		return 0, err
	}
	if err := c.acquire(op); err != nil {
		return 0, err
	}
	defer c.guard.Release(1)

	if err := c.importXML(ctx, xml); err != nil {
		return 0, apperr.Import(op, err)
	}
	reconciled := c.reconcile(ctx)
	c.replayHighlights()
	return reconciled, nil
}

// Artifact is a downloadable export.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportDiagramFile returns the live diagram as a .bpmn artifact. It does
// not change any state.
func (c *Controller) ExportDiagramFile(ctx context.Context) (Artifact, error) {
	const op = "export diagram"
	if err := c.ready(op); err != nil {
		return Artifact{}, err
	}
	if err := c.acquire(op); err != nil {
		return Artifact{}, err
	}
	defer c.guard.Release(1)

	xml, err := c.exportXML(ctx)
	if err != nil {
		return Artifact{}, apperr.Serialization(op, err)
	}
	return Artifact{
		Filename:    "process.bpmn",
		ContentType: "application/xml",
		Data:        []byte(xml),
	}, nil
}

// ReplayHighlights marks every linked element on the live diagram and
// returns how many were marked.
func (c *Controller) ReplayHighlights() int {
	return c.replayHighlights()
}

func (c *Controller) replayHighlights() int {
	n := 0
	for elementID, link := range c.store.AllLinks() {
		if len(link.StoryIDs) == 0 {
			continue
		}
		c.engine.SetHighlight(elementID, true)
		c.metrics.Highlight(true)
		n++
	}
	return n
}

func (c *Controller) ready(op string) error {
	if c.State() != Ready {
		return apperr.NotReady(op)
	}
	return nil
}

func (c *Controller) acquire(op string) error {
	if !c.guard.TryAcquire(1) {
		c.metrics.BusyRejected()
		return apperr.Busy(op)
	}
	return nil
}

func (c *Controller) importXML(ctx context.Context, xml string) error {
	err := c.engine.ImportXML(ctx, xml)
	c.metrics.DiagramRoundTrip("import", err)
	return err
}

func (c *Controller) exportXML(ctx context.Context) (string, error) {
	xml, err := c.engine.ExportXML(ctx)
	c.metrics.DiagramRoundTrip("export", err)
	return xml, err
}
