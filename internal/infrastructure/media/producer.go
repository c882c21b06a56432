package media

import (
	"fmt"
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Producer is the send-side handle for one media kind. Application code
// feeds RTP packets through WriteRTP; a paused producer silently drops them.
type Producer struct {
	id    string
	kind  domain.MediaKind
	track *webrtc.TrackLocalStaticRTP
	pc    *webrtc.PeerConnection

	mu     sync.Mutex
	paused bool
	closed bool

	onClose func()
}

var _ ports.ProducerHandle = (*Producer)(nil)

func newProducer(id string, kind domain.MediaKind, track *webrtc.TrackLocalStaticRTP, pc *webrtc.PeerConnection, onClose func()) *Producer {
	return &Producer{id: id, kind: kind, track: track, pc: pc, onClose: onClose}
}

func (p *Producer) ID() string             { return p.id }
func (p *Producer) Kind() domain.MediaKind { return p.kind }

// WriteRTP forwards one packet to the local track. Packets written while
// paused are dropped without error.
func (p *Producer) WriteRTP(packet *rtp.Packet) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrTransportClosed
	}
	if p.paused {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.track.WriteRTP(packet); err != nil {
		return fmt.Errorf("write rtp: %w", err)
	}
	return nil
}

func (p *Producer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrTransportClosed
	}
	p.paused = true
	return nil
}

func (p *Producer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrTransportClosed
	}
	p.paused = false
	return nil
}

// Close is terminal; a closed producer cannot be reopened.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.onClose != nil {
		p.onClose()
	}
	return p.pc.Close()
}
