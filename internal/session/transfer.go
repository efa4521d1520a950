package session

import (
	"context"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/persist"
	"go.uber.org/zap"
)

// ExportSession returns the whole session (stories, links and the saved
// diagram) as an indented JSON document in the persisted layout.
func (c *Controller) ExportSession() ([]byte, error) {
	const op = "export session"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	data, err := persist.EncodeIndent(c.store.Snapshot())
	if err != nil {
		return nil, apperr.Serialization(op, err)
	}
	return data, nil
}

// ImportReport describes what ImportSession loaded.
type ImportReport struct {
	Stories     int
	Links       int
	Repairs     int
	Reconciled  int
	HasDiagram  bool
	Highlighted int
}

// ImportSession replaces the whole session with a document produced by
// ExportSession. The document's diagram, or the default when it has none,
// is imported first; if that fails nothing changes.
func (c *Controller) ImportSession(ctx context.Context, data []byte) (ImportReport, error) {
	const op = "import session"
	var report ImportReport

	if err := c.ready(op); err != nil {
		return report, err
	}
	st, err := persist.Decode(data)
	if err != nil {
		return report, apperr.New(apperr.KindImport, op, "session document is malformed", err)
	}

	if err := c.acquire(op); err != nil {
		return report, err
	}
	defer c.guard.Release(1)

	diagram := c.opts.DefaultDiagram
	if st.BpmnXML != nil {
		diagram = *st.BpmnXML
		report.HasDiagram = true
	}
	if err := c.importXML(ctx, diagram); err != nil {
		return report, apperr.Import(op, err)
	}

	report.Repairs = linkage.Repair(st)
	c.store.Replace(ctx, st)
	report.Reconciled = c.reconcile(ctx)
	report.Highlighted = c.replayHighlights()
	report.Stories = len(c.store.ListStories())
	report.Links = len(c.store.AllLinks())

	c.log.Info("session imported",
		zap.Int("stories", report.Stories),
		zap.Int("links", report.Links),
		zap.Int("repairs", report.Repairs),
	)
	return report, nil
}

// ClearAll drops every story, link and the saved diagram, and reloads the
// default diagram.
func (c *Controller) ClearAll(ctx context.Context) error {
	const op = "clear session"
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
	c.store.Clear(ctx)
	c.log.Info("session cleared")
	return nil
}
