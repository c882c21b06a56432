package media

import (
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/pkg/optimize"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Consumer is the receive-side handle for one remote producer. Pause and
// Resume affect only local delivery; signaling the peer is the registry's
// responsibility.
type Consumer struct {
	producerID domain.ProducerID
	kind       domain.MediaKind
	pc         *webrtc.PeerConnection
	stats      StatsObserver
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	id      string
	paused  bool
	closed  bool
	onClose func()
}

var _ ports.ConsumerHandle = (*Consumer)(nil)

func newConsumer(producerID domain.ProducerID, kind domain.MediaKind, pc *webrtc.PeerConnection, stats StatsObserver, logger *zap.SugaredLogger) *Consumer {
	return &Consumer{
		producerID: producerID,
		kind:       kind,
		pc:         pc,
		stats:      stats,
		logger:     logger,
		id:         string(producerID) + "-consumer",
	}
}

func (c *Consumer) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Consumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *Consumer) Kind() domain.MediaKind        { return c.kind }

func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Consumer) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrTransportClosed
	}
	c.paused = true
	return nil
}

func (c *Consumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrTransportClosed
	}
	c.paused = false
	return nil
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose()
	}
	return c.pc.Close()
}

// handleTrack adopts the remote track once negotiation delivers it and
// starts the RTCP quality loop for its receiver.
func (c *Consumer) handleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	c.mu.Lock()
	c.id = track.ID()
	c.mu.Unlock()

	c.logger.Infow("remote track arrived",
		"producer_id", c.producerID,
		"track_id", track.ID(),
		"codec", track.Codec().MimeType,
	)

	go c.processRTCP(receiver)
	go c.drain(track)
}

// readBuffers is shared across all consumer drain loops.
var readBuffers = optimize.NewBytePool(1500)

// drain reads media packets so the receiver keeps flowing; delivery to the
// application happens at the view layer, which is out of scope here.
func (c *Consumer) drain(track *webrtc.TrackRemote) {
	buf := readBuffers.Get()
	defer readBuffers.Put(buf)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// processRTCP extracts packet-loss and jitter readings from receiver
// reports until the receiver fails.
func (c *Consumer) processRTCP(receiver *webrtc.RTPReceiver) {
	for {
		packets, _, err := receiver.ReadRTCP()
		if err != nil {
			return
		}

		for _, packet := range packets {
			report, ok := packet.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, r := range report.Reports {
				loss := float64(r.FractionLost) / 255.0
				jitterMs := float64(r.Jitter) / 1000.0
				c.stats.ObserveRTCP(c.kind, loss, jitterMs)
			}
		}
	}
}
