package services

import (
	"context"
	"fmt"
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"

	"go.uber.org/zap"
)

// ConsumerTransport is the registry entry for one subscribed remote
// producer. The registry owns the Paused flag; the underlying consumer
// handle is owned by the transport manager that created it.
type ConsumerTransport struct {
	ProducerID domain.ProducerID
	Kind       domain.MediaKind
	Consumer   ports.ConsumerHandle

	// Bus is the signaling connection the consumer was established over;
	// pause/resume round-trips must use the same socket.
	Bus ports.SignalBus

	Paused bool
}

type consumerPausePayload struct {
	ProducerID domain.ProducerID `json:"producerId"`
	ConsumerID string            `json:"serverConsumerId"`
}

// Registry is the single source of truth mapping producerId to the local
// consumer transport representing it.
type Registry struct {
	mu         sync.RWMutex
	byProducer map[domain.ProducerID]*ConsumerTransport

	metrics TransportMetrics
	logger  *zap.SugaredLogger
}

func NewRegistry(metrics TransportMetrics, logger *zap.Logger) *Registry {
	return &Registry{
		byProducer: make(map[domain.ProducerID]*ConsumerTransport),
		metrics:    metrics,
		logger:     logger.Sugar(),
	}
}

// Add registers a transport for its producer. At most one entry per
// producerId is kept; a duplicate leaves the existing entry untouched.
func (r *Registry) Add(t *ConsumerTransport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byProducer[t.ProducerID]; exists {
		return fmt.Errorf("%s: %w", t.ProducerID, domain.ErrDuplicateProducer)
	}
	r.byProducer[t.ProducerID] = t
	r.metrics.ConsumerAdded(t.Kind)
	return nil
}

// Has reports whether a transport for the producer is registered.
func (r *Registry) Has(id domain.ProducerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byProducer[id]
	return ok
}

// Get returns the transport for the producer, if any.
func (r *Registry) Get(id domain.ProducerID) (*ConsumerTransport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byProducer[id]
	return t, ok
}

// Remove closes the consumer handle and drops the entry.
func (r *Registry) Remove(id domain.ProducerID) {
	r.mu.Lock()
	t, ok := r.byProducer[id]
	if ok {
		delete(r.byProducer, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := t.Consumer.Close(); err != nil {
		r.logger.Warnw("error closing consumer", "producer_id", id, "error", err)
	}
	r.metrics.ConsumerRemoved(t.Kind)
}

// Snapshot returns a copied slice of the current entries for iteration
// outside the lock.
func (r *Registry) Snapshot() []*ConsumerTransport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ConsumerTransport, 0, len(r.byProducer))
	for _, t := range r.byProducer {
		out = append(out, t)
	}
	return out
}

// Len returns the number of registered transports.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byProducer)
}

// Pause pauses the consumer locally and then notifies the peer with a
// fire-and-forget consumer-pause emit. The local state flips regardless of
// the emit outcome; pause is optimistic.
func (r *Registry) Pause(ctx context.Context, t *ConsumerTransport) error {
	if err := t.Consumer.Pause(); err != nil {
		return fmt.Errorf("local pause %s: %w", t.ProducerID, err)
	}

	r.mu.Lock()
	t.Paused = true
	r.mu.Unlock()
	r.metrics.ConsumerPaused(t.Kind)

	payload := consumerPausePayload{ProducerID: t.ProducerID, ConsumerID: t.Consumer.ID()}
	if err := t.Bus.Emit(ctx, "consumer-pause", payload); err != nil {
		// The server learns about the pause on the next round-trip; the
		// local consumer stays paused either way.
		r.logger.Warnw("consumer-pause emit failed", "producer_id", t.ProducerID, "error", err)
	}
	return nil
}

// Resume asks the peer first and resumes the local consumer only when the
// acknowledgement confirms it. An unconfirmed resume leaves the consumer
// paused rather than rendering stale media.
func (r *Registry) Resume(ctx context.Context, t *ConsumerTransport) error {
	payload := consumerPausePayload{ProducerID: t.ProducerID, ConsumerID: t.Consumer.ID()}

	var ack ports.ResumeAck
	if err := t.Bus.Request(ctx, "consumer-resume", payload, &ack); err != nil {
		return fmt.Errorf("consumer-resume %s: %w", t.ProducerID, err)
	}
	if !ack.Resumed {
		return fmt.Errorf("%s: %w", t.ProducerID, domain.ErrResumeRejected)
	}

	if err := t.Consumer.Resume(); err != nil {
		return fmt.Errorf("local resume %s: %w", t.ProducerID, err)
	}

	r.mu.Lock()
	t.Paused = false
	r.mu.Unlock()
	r.metrics.ConsumerResumed(t.Kind)
	return nil
}

// SetPaused flips only the local bookkeeping flag. Used when a consumer is
// registered in its initial server-side paused state.
func (r *Registry) SetPaused(t *ConsumerTransport, paused bool) {
	r.mu.Lock()
	t.Paused = paused
	r.mu.Unlock()
}

// IsPaused reads the bookkeeping flag under the registry lock.
func (r *Registry) IsPaused(t *ConsumerTransport) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return t.Paused
}
