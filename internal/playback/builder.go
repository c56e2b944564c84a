package playback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/tts"
	"github.com/acme/dialburst/internal/twiml"
	"github.com/acme/dialburst/pkg/logger"
)

// Spoken fallbacks used when no greeting or audio file is configured.
const (
	DefaultGreeting   = "This is an automated test call."
	NoFileAnnouncement = "No audio file is available for playback."
	ClosingAnnouncement = "Playback complete. Thank you for testing."
)

// Builder turns callback parameters into a response document. External
// synthesis failures degrade to builtin speech; a stale audio filename
// degrades to a spoken notice. Building never fails the call.
type Builder struct {
	library *assets.Library
	synth   tts.Synthesizer
	log     *logger.Logger
}

// NewBuilder constructs a document builder. synth may be nil when no
// external provider is configured.
func NewBuilder(library *assets.Library, synth tts.Synthesizer, log *logger.Logger) *Builder {
	return &Builder{library: library, synth: synth, log: log}
}

// Build assembles the document for one callback fetch.
func (b *Builder) Build(ctx context.Context, p Params) *twiml.Document {
	doc := twiml.New()
	doc.Pause(1)

	if p.Mode == domain.PlaybackTTSOnly || p.Mode == domain.PlaybackTTSMP3 {
		b.addSpeech(ctx, doc, p)
	}

	if p.Mode == domain.PlaybackTTSMP3 || p.Mode == domain.PlaybackMP3Only {
		b.addAudio(doc, p)
	}

	return doc
}

func (b *Builder) addSpeech(ctx context.Context, doc *twiml.Document, p Params) {
	text := p.GreetingText
	if !p.GreetingEnabled || text == "" {
		doc.Say(DefaultGreeting)
		return
	}

	if p.TTSProvider == domain.TTSExternal && b.synth != nil {
		if url, err := b.synthesizeToURL(ctx, p); err == nil {
			doc.Play(url)
			return
		} else {
			b.log.Warn("playback: external synthesis failed, falling back to builtin voice",
				zap.String("call_id", p.CallID), zap.Error(err))
		}
	}

	doc.Say(text)
}

func (b *Builder) addAudio(doc *twiml.Document, p Params) {
	if p.AudioFile != "" {
		if url, err := b.library.Resolve(p.AudioFile); err == nil {
			doc.Play(url)
			doc.Pause(1)
			doc.Say(ClosingAnnouncement)
			return
		}
		b.log.Warn("playback: audio file not available",
			zap.String("call_id", p.CallID), zap.String("file", p.AudioFile))
	}
	doc.Say(NoFileAnnouncement)
}

func (b *Builder) synthesizeToURL(ctx context.Context, p Params) (string, error) {
	result, err := b.synth.Synthesize(ctx, p.GreetingText, p.Voice)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("greeting-%s.mp3", p.CallID)
	if p.PersistSynthesis {
		return b.library.Save(name, result.Audio)
	}
	return b.library.SaveScratch(name, result.Audio)
}
