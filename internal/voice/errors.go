package voice

import "errors"

var (
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("not connected to voice service")

	// ErrNoAudioSource is returned by StartMicStream when the client was
	// built without a capture source. Such environments must use the
	// record-then-upload fallback instead.
	ErrNoAudioSource = errors.New("no audio source available")
)

// ServiceError is an explicit error frame sent by the remote service.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
