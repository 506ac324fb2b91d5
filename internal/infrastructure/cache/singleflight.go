package cache

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
)

// Flight collapses concurrent extraction builds for the same fingerprint so
// at most one build per source is in flight process-wide.
type Flight struct {
	group   singleflight.Group
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewFlight creates a single-flight guard.
func NewFlight(logger *zap.Logger, metrics *monitoring.MetricsCollector) *Flight {
	return &Flight{logger: logger, metrics: metrics}
}

// Do runs build at most once per in-flight fingerprint. Callers that join an
// existing build block until it finishes and observe the same result; joined
// is true for those callers. The build runs on a context detached from the
// leader's request, so it is not torn down when the leader disconnects while
// followers still wait. A caller whose own context ends while waiting gets
// its context error; the build keeps running for the others.
func (f *Flight) Do(ctx context.Context, fingerprint string, build func(ctx context.Context) (interface{}, error)) (result interface{}, joined bool, err error) {
	var ran bool
	ch := f.group.DoChan(fingerprint, func() (interface{}, error) {
		ran = true
		return build(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		// ran is written before the result is delivered, so reading it
		// here is ordered.
		if !ran {
			f.metrics.SingleflightFollower()
			f.logger.Debug("joined in-flight extraction",
				zap.String("fingerprint", fingerprint))
		}
		return res.Val, !ran, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
