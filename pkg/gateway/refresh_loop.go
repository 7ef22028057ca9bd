package gateway

import (
	"context"
	"time"
)

// runRefreshLoop re-lists tools from every upstream domain on a fixed
// interval and unconditionally re-registers the meta-tools afterward so
// connected sessions receive notifications/tools/list_changed even when the
// refresh produced no diff, per the emit-unconditionally resolution.
func (g *GatewayServer) runRefreshLoop(ctx context.Context) {
	defer g.refreshWG.Done()

	ticker := time.NewTicker(g.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			diffs, errs := g.upstream.RefreshAll(ctx)
			for _, e := range errs {
				g.logger().Warn("upstream refresh failed", "error", e)
			}
			g.refreshToolRegistration()
			g.logger().Info("refresh cycle complete", "domains_refreshed", len(diffs))
		}
	}
}
