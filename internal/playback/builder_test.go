package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/domain"
	"github.com/acme/dialburst/internal/tts"
	"github.com/acme/dialburst/pkg/logger"
)

type fakeSynth struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) (tts.Result, error) {
	f.calls++
	if f.err != nil {
		return tts.Result{}, f.err
	}
	return tts.Result{Audio: f.audio, ContentType: "audio/mpeg"}, nil
}

func newTestLibrary(t *testing.T, files ...string) *assets.Library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	lib, err := assets.NewLibrary(dir, filepath.Join(dir, ".cache"), "http://example.com", "/audio")
	if err != nil {
		t.Fatalf("new library: %v", err)
	}
	return lib
}

func render(t *testing.T, b *Builder, p Params) string {
	t.Helper()
	out, err := b.Build(context.Background(), p).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func TestBuildDefaultGreetingWhenDisabled(t *testing.T) {
	b := NewBuilder(newTestLibrary(t), nil, logger.Nop())

	out := render(t, b, Params{Mode: domain.PlaybackTTSOnly, GreetingEnabled: false})
	if !strings.Contains(out, DefaultGreeting) {
		t.Fatalf("expected default greeting, got:\n%s", out)
	}
}

func TestBuildStartsWithPause(t *testing.T) {
	b := NewBuilder(newTestLibrary(t), nil, logger.Nop())

	out := render(t, b, Params{Mode: domain.PlaybackTTSOnly})
	pause := strings.Index(out, "<Pause")
	say := strings.Index(out, "<Say>")
	if pause < 0 || say < 0 || pause > say {
		t.Fatalf("expected leading pause before speech:\n%s", out)
	}
}

func TestBuildExternalSynthesisPlaysURL(t *testing.T) {
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	b := NewBuilder(newTestLibrary(t), synth, logger.Nop())

	out := render(t, b, Params{
		CallID:          "c-1",
		Mode:            domain.PlaybackTTSOnly,
		GreetingEnabled: true,
		GreetingText:    "Hello there",
		TTSProvider:     domain.TTSExternal,
	})

	if synth.calls != 1 {
		t.Fatalf("expected one synthesis call, got %d", synth.calls)
	}
	if !strings.Contains(out, assets.ScratchPath+"/greeting-c-1.mp3") {
		t.Fatalf("expected scratch playback URL, got:\n%s", out)
	}
	if strings.Contains(out, "<Say>Hello there</Say>") {
		t.Fatalf("expected no spoken fallback on success:\n%s", out)
	}
}

func TestBuildExternalSynthesisFallsBackToSay(t *testing.T) {
	synth := &fakeSynth{err: errors.New("quota exhausted")}
	b := NewBuilder(newTestLibrary(t), synth, logger.Nop())

	out := render(t, b, Params{
		Mode:            domain.PlaybackTTSOnly,
		GreetingEnabled: true,
		GreetingText:    "Hello there",
		TTSProvider:     domain.TTSExternal,
	})

	if !strings.Contains(out, "<Say>Hello there</Say>") {
		t.Fatalf("expected spoken fallback, got:\n%s", out)
	}
}

func TestBuildPersistedSynthesisUsesLibraryPath(t *testing.T) {
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	lib := newTestLibrary(t)
	b := NewBuilder(lib, synth, logger.Nop())

	out := render(t, b, Params{
		CallID:           "c-2",
		Mode:             domain.PlaybackTTSOnly,
		GreetingEnabled:  true,
		GreetingText:     "Hello",
		TTSProvider:      domain.TTSExternal,
		PersistSynthesis: true,
	})

	if !strings.Contains(out, "/audio/greeting-c-2.mp3") {
		t.Fatalf("expected library URL, got:\n%s", out)
	}
	if !lib.Contains("greeting-c-2.mp3") {
		t.Fatal("expected synthesized file persisted to library")
	}
}

func TestBuildPlaysAudioFileWithClosing(t *testing.T) {
	b := NewBuilder(newTestLibrary(t, "jingle.mp3"), nil, logger.Nop())

	out := render(t, b, Params{Mode: domain.PlaybackMP3Only, AudioFile: "jingle.mp3"})

	play := strings.Index(out, "<Play>http://example.com/audio/jingle.mp3</Play>")
	closing := strings.Index(out, ClosingAnnouncement)
	if play < 0 || closing < 0 || play > closing {
		t.Fatalf("expected playback then closing announcement:\n%s", out)
	}
}

func TestBuildAnnouncesMissingAudioFile(t *testing.T) {
	b := NewBuilder(newTestLibrary(t), nil, logger.Nop())

	out := render(t, b, Params{Mode: domain.PlaybackMP3Only, AudioFile: "gone.mp3"})
	if !strings.Contains(out, NoFileAnnouncement) {
		t.Fatalf("expected missing-file announcement, got:\n%s", out)
	}
}

func TestBuildCombinedModeSpeechBeforeAudio(t *testing.T) {
	b := NewBuilder(newTestLibrary(t, "jingle.mp3"), nil, logger.Nop())

	out := render(t, b, Params{
		Mode:            domain.PlaybackTTSMP3,
		GreetingEnabled: true,
		GreetingText:    "Greetings",
		AudioFile:       "jingle.mp3",
	})

	say := strings.Index(out, "<Say>Greetings</Say>")
	play := strings.Index(out, "<Play>")
	if say < 0 || play < 0 || say > play {
		t.Fatalf("expected speech before audio:\n%s", out)
	}
}

func TestDecodeParamsDefaults(t *testing.T) {
	p := DecodeParams(nil)
	if p.Mode != domain.PlaybackMP3Only {
		t.Fatalf("expected default mode, got %q", p.Mode)
	}
	if p.TTSProvider != domain.TTSBuiltin {
		t.Fatalf("expected default provider, got %q", p.TTSProvider)
	}
}
