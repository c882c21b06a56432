package services

import (
	"context"
	"time"

	"roomcast/internal/core/session"
	"roomcast/pkg/tracing"

	"go.uber.org/zap"
)

// Reconciler converges the consumer transport set toward the desired
// visible-stream set. Audio consumers are never throttled; video and screen
// consumers are paused when they fall out of every tracking list and resumed
// when they come back.
type Reconciler struct {
	state    *session.State
	registry *Registry

	// settleDelay debounces pause decisions across roster churn so a stream
	// that disappears and reappears within the window is not torn down.
	settleDelay time.Duration

	metrics TransportMetrics
	logger  *zap.SugaredLogger
}

func NewReconciler(state *session.State, registry *Registry, settleDelay time.Duration, metrics TransportMetrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		state:       state,
		registry:    registry,
		settleDelay: settleDelay,
		metrics:     metrics,
		logger:      logger.Sugar(),
	}
}

// ProcessConsumerTransports runs one convergence pass. State is re-read
// fresh at the start of the pass; a roster event arriving mid-pass is picked
// up by the next triggered pass. Per-transport failures are logged and
// skipped so one bad transport never blocks convergence of the rest.
func (r *Reconciler) ProcessConsumerTransports(ctx context.Context) error {
	transports := r.registry.Snapshot()
	ctx, span := tracing.TraceReconcilePass(ctx, len(transports))
	defer span.End()
	started := time.Now()

	snap := r.state.Snapshot()

	var resumeSet, pauseSet []*ConsumerTransport
	for _, t := range transports {
		if t.Kind.IsAudio() {
			continue
		}
		valid := snap.ValidProducer(t.ProducerID)
		switch {
		case valid && t.Paused:
			resumeSet = append(resumeSet, t)
		case t.ProducerID != "" && !valid && !t.Paused:
			pauseSet = append(pauseSet, t)
		}
	}

	var paused, resumed int

	if len(pauseSet) > 0 {
		if err := r.settle(ctx); err != nil {
			return err
		}
		// Re-read after the settle window; anything that became valid again
		// is spared.
		fresh := r.state.Snapshot()
		for _, t := range pauseSet {
			if fresh.ValidProducer(t.ProducerID) {
				continue
			}
			if err := r.registry.Pause(ctx, t); err != nil {
				r.logger.Warnw("pause failed, skipping transport",
					"producer_id", t.ProducerID,
					"kind", t.Kind,
					"error", err,
				)
				continue
			}
			paused++
		}
	}

	for _, t := range resumeSet {
		if err := r.registry.Resume(ctx, t); err != nil {
			r.logger.Warnw("resume failed, consumer stays paused",
				"producer_id", t.ProducerID,
				"kind", t.Kind,
				"error", err,
			)
			continue
		}
		resumed++
	}

	r.metrics.ReconcilePass(time.Since(started), paused, resumed)
	r.logger.Debugw("reconcile pass complete",
		"transports", len(transports),
		"paused", paused,
		"resumed", resumed,
		"duration", time.Since(started),
	)
	return nil
}

func (r *Reconciler) settle(ctx context.Context) error {
	if r.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
