package tts

import "context"

// Result holds the output of a synthesis request.
type Result struct {
	// Audio is the synthesized audio, ready to serve as-is.
	Audio []byte
	// ContentType is the MIME type of the audio (e.g. "audio/mpeg").
	ContentType string
}

// Synthesizer converts greeting text to audio via an external provider.
// Builtin speech does not go through here; the telephony provider speaks it
// directly from the response document.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Result, error)
}
