package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deenStreakAPI/services"
	"deenStreakAPI/utils"
)

// StartReconciler runs the missed-day sweep on a ticker until ctx is
// cancelled. The sweep itself is idempotent per calendar day, so an
// interval shorter than a day only costs re-scans, never double counts.
// Production cadence is daily, shortly after the reporting-timezone
// midnight.
func StartReconciler(ctx context.Context, svc *services.ReconciliationService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if utils.Logger != nil {
					utils.Logger.Info("reconciler worker stopped")
				}
				return
			case <-ticker.C:
				runOnce(ctx, svc)
			}
		}
	}()
}

func runOnce(ctx context.Context, svc *services.ReconciliationService) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := svc.Run(runCtx); err != nil {
		if utils.Logger != nil {
			utils.Logger.Error("reconciliation run failed", zap.Error(err))
		}
	}
}
