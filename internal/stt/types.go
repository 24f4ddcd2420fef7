package stt

import "errors"

// ErrSessionNotFound is returned when an operation references an unknown
// session ID.
var ErrSessionNotFound = errors.New("stt session not found")

// Transcript is one finalized speech-to-text result. Interim results never
// leave the bridge.
type Transcript struct {
	// Text is the transcribed text
	Text string

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64
}
