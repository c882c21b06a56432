package services

import (
	"time"

	"roomcast/internal/core/domain"
)

// TransportMetrics receives transport and reconciliation counters. Wired to
// the prometheus collector in production; tests use NopMetrics.
type TransportMetrics interface {
	ConsumerAdded(kind domain.MediaKind)
	ConsumerRemoved(kind domain.MediaKind)
	ConsumerPaused(kind domain.MediaKind)
	ConsumerResumed(kind domain.MediaKind)
	ReconcilePass(duration time.Duration, paused, resumed int)
	ProducerCreated(kind domain.MediaKind)
	ProducerClosed(kind domain.MediaKind)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ConsumerAdded(domain.MediaKind)             {}
func (NopMetrics) ConsumerRemoved(domain.MediaKind)           {}
func (NopMetrics) ConsumerPaused(domain.MediaKind)            {}
func (NopMetrics) ConsumerResumed(domain.MediaKind)           {}
func (NopMetrics) ReconcilePass(time.Duration, int, int)      {}
func (NopMetrics) ProducerCreated(domain.MediaKind)           {}
func (NopMetrics) ProducerClosed(domain.MediaKind)            {}
