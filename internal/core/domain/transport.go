package domain

// ProducerSlotState is the explicit lifecycle of a local send transport for
// one media kind. Closed is terminal; reopening requires a fresh slot.
type ProducerSlotState int

const (
	SlotUncreated ProducerSlotState = iota
	SlotCreated
	SlotConnected
	SlotPaused
	SlotClosed
)

func (s ProducerSlotState) String() string {
	switch s {
	case SlotUncreated:
		return "uncreated"
	case SlotCreated:
		return "created"
	case SlotConnected:
		return "connected"
	case SlotPaused:
		return "paused"
	case SlotClosed:
		return "closed"
	}
	return "unknown"
}

// TransportTarget selects which egress paths an operation applies to. The
// local path is the community-edition server; the remote path is the cloud
// SFU and is always primary.
type TransportTarget string

const (
	TargetAll    TransportTarget = "all"
	TargetRemote TransportTarget = "remote"
	TargetLocal  TransportTarget = "local"
)

// Remote reports whether the remote path is in scope for the target.
func (t TransportTarget) Remote() bool { return t == TargetAll || t == TargetRemote }

// Local reports whether the community-edition path is in scope.
func (t TransportTarget) Local() bool { return t == TargetAll || t == TargetLocal }

// SendParams carries the track and encoding parameters handed to the media
// engine when producing.
type SendParams struct {
	TrackID     string
	MimeType    string
	MaxBitrate  int
	Simulcast   bool
	ScreenShare bool
}

// ConsumeRequest asks the media engine to subscribe to one remote producer.
type ConsumeRequest struct {
	ProducerID ProducerID
	Kind       MediaKind
	RTPParams  []byte
}
