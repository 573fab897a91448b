package realtime

import "errors"

var (
	ErrChannel          = errors.New("realtime: channel error")
	ErrTimedOut         = errors.New("realtime: subscription timed out")
	ErrChannelSpent     = errors.New("realtime: channel handle can not be subscribed again")
	ErrNotSubscribed    = errors.New("realtime: channel is not subscribed")
	ErrAlreadyConnected = errors.New("realtime: scope is already connected")
	ErrTransportClosed  = errors.New("realtime: transport is closed")
	ErrInvalidTopic     = errors.New("realtime: invalid topic")
	ErrInvalidFilter    = errors.New("realtime: invalid change filter")
	ErrInvalidEnvelope  = errors.New("realtime: invalid envelope")
	ErrInvalidPayload   = errors.New("realtime: invalid change payload")
)
