package playback

import (
	"net/url"
	"strconv"

	"github.com/acme/dialburst/internal/domain"
)

// Params is the playback configuration carried on the callback URL for one
// call attempt. The audio file is resolved to a concrete name at dial time,
// so each concurrent random selection is an independent draw.
type Params struct {
	CallID           string
	GreetingEnabled  bool
	GreetingText     string
	Mode             domain.PlaybackMode
	AudioFile        string
	TTSProvider      domain.TTSProvider
	Voice            string
	PersistSynthesis bool
}

// Encode serializes the params to URL query values.
func (p Params) Encode() url.Values {
	v := url.Values{}
	v.Set("call_id", p.CallID)
	v.Set("greeting", strconv.FormatBool(p.GreetingEnabled))
	if p.GreetingText != "" {
		v.Set("greeting_text", p.GreetingText)
	}
	v.Set("mode", string(p.Mode))
	if p.AudioFile != "" {
		v.Set("audio_file", p.AudioFile)
	}
	v.Set("tts_provider", string(p.TTSProvider))
	if p.Voice != "" {
		v.Set("voice", p.Voice)
	}
	v.Set("persist", strconv.FormatBool(p.PersistSynthesis))
	return v
}

// DecodeParams parses params from query values, tolerating missing fields.
func DecodeParams(v url.Values) Params {
	p := Params{
		CallID:           v.Get("call_id"),
		GreetingEnabled:  v.Get("greeting") == "true",
		GreetingText:     v.Get("greeting_text"),
		Mode:             domain.PlaybackMode(v.Get("mode")),
		AudioFile:        v.Get("audio_file"),
		TTSProvider:      domain.TTSProvider(v.Get("tts_provider")),
		Voice:            v.Get("voice"),
		PersistSynthesis: v.Get("persist") == "true",
	}
	if p.Mode == "" {
		p.Mode = domain.PlaybackMP3Only
	}
	if p.TTSProvider == "" {
		p.TTSProvider = domain.TTSBuiltin
	}
	return p
}
