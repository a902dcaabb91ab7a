package youtube

import "errors"

var (
	ErrVideoNotFound   = errors.New("video not found")
	ErrChannelNotFound = errors.New("channel not found")
	// ErrNoTranscript means the platform has no captions for the requested language.
	ErrNoTranscript = errors.New("no transcript available")
)
