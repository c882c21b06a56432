package domain

import "errors"

var (
	ErrPermissionDenied   = errors.New("media permission denied")
	ErrVideoNotAllowed    = errors.New("video not allowed in this room")
	ErrProducerExists     = errors.New("producer already created for kind")
	ErrTransportNotCreated = errors.New("send transport not created")
	ErrTransportClosed    = errors.New("transport closed")
	ErrDuplicateProducer  = errors.New("consumer transport already registered for producer")
	ErrProducerNotFound   = errors.New("producer not found")
	ErrResumeRejected     = errors.New("server rejected consumer resume")
	ErrInvalidCredentials = errors.New("invalid api credentials")
	ErrRoomRejected       = errors.New("room request rejected")
)
