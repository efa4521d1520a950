package session

import (
	"context"

	"github.com/HendryAvila/storymap/internal/linkage"
	"go.uber.org/zap"
)

// StaleLinks returns the cached refs of link entries whose element is not
// on the live diagram. Stale entries are kept until pruned explicitly.
func (c *Controller) StaleLinks() ([]linkage.ElementRef, error) {
	if err := c.ready("list stale links"); err != nil {
		return nil, err
	}
	return c.staleLinks(), nil
}

// PruneStaleLinks removes every stale link entry and returns the count.
func (c *Controller) PruneStaleLinks(ctx context.Context) (int, error) {
	if err := c.ready("prune stale links"); err != nil {
		return 0, err
	}
	return c.prune(ctx), nil
}

func (c *Controller) staleLinks() []linkage.ElementRef {
	return c.store.StaleElements(func(elementID string) bool {
		_, ok := c.engine.GetElement(elementID)
		return ok
	})
}

func (c *Controller) prune(ctx context.Context) int {
	stale := c.staleLinks()
	if len(stale) == 0 {
		return 0
	}
	ids := make([]string, 0, len(stale))
	for _, ref := range stale {
		ids = append(ids, ref.ID)
	}
	n := c.store.Prune(ctx, ids)
	c.log.Info("stale links pruned", zap.Strings("elements", ids))
	return n
}

// reconcile prunes after a load when ReconcileOnLoad is set.
func (c *Controller) reconcile(ctx context.Context) int {
	if !c.opts.ReconcileOnLoad {
		return 0
	}
	return c.prune(ctx)
}
