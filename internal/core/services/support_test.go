package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
)

// stubBus is a scripted in-memory SignalBus. Responders are keyed by event
// name; every emit and request is recorded for assertions.
type stubBus struct {
	mu         sync.Mutex
	responders map[string]func(payload any) (any, error)
	emits      []stubCall
	requests   []stubCall
	emitErr    error
	handlers   map[string][]func(json.RawMessage)
	endpoint   string
}

type stubCall struct {
	Event   string
	Payload any
}

func newStubBus() *stubBus {
	return &stubBus{
		responders: make(map[string]func(payload any) (any, error)),
		handlers:   make(map[string][]func(json.RawMessage)),
		endpoint:   "stub://bus",
	}
}

func (b *stubBus) respond(event string, fn func(payload any) (any, error)) {
	b.mu.Lock()
	b.responders[event] = fn
	b.mu.Unlock()
}

// respondOK scripts a fixed acknowledgement value for an event.
func (b *stubBus) respondOK(event string, ack any) {
	b.respond(event, func(any) (any, error) { return ack, nil })
}

func (b *stubBus) Emit(_ context.Context, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emits = append(b.emits, stubCall{Event: event, Payload: payload})
	return b.emitErr
}

func (b *stubBus) Request(_ context.Context, event string, payload any, out any) error {
	b.mu.Lock()
	fn, ok := b.responders[event]
	b.requests = append(b.requests, stubCall{Event: event, Payload: payload})
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("no responder for %s", event)
	}
	ack, err := fn(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (b *stubBus) On(event string, handler func(data json.RawMessage)) {
	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], handler)
	b.mu.Unlock()
}

func (b *stubBus) Endpoint() string { return b.endpoint }
func (b *stubBus) Close() error     { return nil }

func (b *stubBus) emitCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.emits {
		if c.Event == event {
			n++
		}
	}
	return n
}

func (b *stubBus) requestCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.requests {
		if c.Event == event {
			n++
		}
	}
	return n
}

// fakeConsumer implements ports.ConsumerHandle with injectable failures.
type fakeConsumer struct {
	mu        sync.Mutex
	id        string
	producer  domain.ProducerID
	kind      domain.MediaKind
	paused    bool
	closed    bool
	pauseErr  error
	resumeErr error
}

func newFakeConsumer(producer domain.ProducerID, kind domain.MediaKind) *fakeConsumer {
	return &fakeConsumer{id: string(producer) + "-consumer", producer: producer, kind: kind}
}

func (c *fakeConsumer) ID() string                    { return c.id }
func (c *fakeConsumer) ProducerID() domain.ProducerID { return c.producer }
func (c *fakeConsumer) Kind() domain.MediaKind        { return c.kind }

func (c *fakeConsumer) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pauseErr != nil {
		return c.pauseErr
	}
	c.paused = true
	return nil
}

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeErr != nil {
		return c.resumeErr
	}
	c.paused = false
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConsumer) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// fakeProducer implements ports.ProducerHandle.
type fakeProducer struct {
	id     string
	kind   domain.MediaKind
	closed bool
}

func (p *fakeProducer) ID() string             { return p.id }
func (p *fakeProducer) Kind() domain.MediaKind { return p.kind }
func (p *fakeProducer) Pause() error           { return nil }
func (p *fakeProducer) Resume() error          { return nil }
func (p *fakeProducer) Close() error           { p.closed = true; return nil }

// fakeEngine implements ports.MediaEngine with injectable behaviors.
type fakeEngine struct {
	mu         sync.Mutex
	produceErr error
	consumeErr error
	produced   []domain.MediaKind
	consumers  map[domain.ProducerID]*fakeConsumer
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{consumers: make(map[domain.ProducerID]*fakeConsumer)}
}

func (e *fakeEngine) Produce(_ context.Context, kind domain.MediaKind, _ domain.SendParams) (ports.ProducerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.produceErr != nil {
		return nil, e.produceErr
	}
	e.produced = append(e.produced, kind)
	return &fakeProducer{id: string(kind) + "-producer", kind: kind}, nil
}

func (e *fakeEngine) Consume(_ context.Context, req domain.ConsumeRequest) (ports.ConsumerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consumeErr != nil {
		return nil, e.consumeErr
	}
	c := newFakeConsumer(req.ProducerID, req.Kind)
	e.consumers[req.ProducerID] = c
	return c, nil
}

func (e *fakeEngine) Close() error { return nil }

// staticChecker answers permission probes from a fixed map.
type staticChecker map[domain.MediaKind]bool

func (c staticChecker) HasPermission(_ context.Context, kind domain.MediaKind) (bool, error) {
	return c[kind], nil
}

func allowAllChecker() staticChecker {
	return staticChecker{domain.KindAudio: true, domain.KindVideo: true, domain.KindScreen: true}
}

// recordingAlerts captures alerts for assertions.
type recordingAlerts struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (a *recordingAlerts) Alert(category domain.AlertCategory, message string) {
	a.mu.Lock()
	a.alerts = append(a.alerts, domain.Alert{Category: category, Message: message})
	a.mu.Unlock()
}

func (a *recordingAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}
