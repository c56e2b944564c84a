package domain

import (
	"errors"
	"testing"

	apperrors "github.com/acme/dialburst/pkg/errors"
)

func TestNormalizeTrimsBlankDestinations(t *testing.T) {
	req := BatchRequest{
		DestinationNumbers: []string{" +15551230001 ", "", "   ", "+15551230002"},
	}
	req.Normalize()

	if len(req.DestinationNumbers) != 2 {
		t.Fatalf("expected 2 destinations, got %d", len(req.DestinationNumbers))
	}
	if req.DestinationNumbers[0] != "+15551230001" {
		t.Fatalf("expected trimmed number, got %q", req.DestinationNumbers[0])
	}
}

func TestNormalizeForcesSingleCallForMultipleDestinations(t *testing.T) {
	req := BatchRequest{
		DestinationNumbers: []string{"+15551230001", "+15551230002"},
		SimultaneousCount:  10,
	}
	req.Normalize()

	if req.SimultaneousCount != 1 {
		t.Fatalf("expected simultaneous count forced to 1, got %d", req.SimultaneousCount)
	}
}

func TestNormalizeClampsSimultaneousCount(t *testing.T) {
	req := BatchRequest{
		DestinationNumbers: []string{"+15551230001"},
		SimultaneousCount:  120,
	}
	req.Normalize()

	if req.SimultaneousCount != MaxSimultaneousCalls {
		t.Fatalf("expected simultaneous count clamped to %d, got %d", MaxSimultaneousCalls, req.SimultaneousCount)
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	req := BatchRequest{DestinationNumbers: []string{"+15551230001"}}
	req.Normalize()

	if req.DelaySeconds != 1 {
		t.Fatalf("expected delay default 1, got %d", req.DelaySeconds)
	}
	if req.Playback.Mode != PlaybackMP3Only {
		t.Fatalf("expected default mode, got %q", req.Playback.Mode)
	}
	if req.Playback.AudioSelection != AudioRandom {
		t.Fatalf("expected default selection, got %q", req.Playback.AudioSelection)
	}
	if req.Playback.TTSProvider != TTSBuiltin {
		t.Fatalf("expected default tts provider, got %q", req.Playback.TTSProvider)
	}
}

func TestValidateRejectsEmptyBatch(t *testing.T) {
	req := BatchRequest{DestinationNumbers: []string{"", "  "}}
	req.Normalize()

	err := req.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateRequiresFileForSpecificSelection(t *testing.T) {
	req := BatchRequest{
		DestinationNumbers: []string{"+15551230001"},
		Playback:           PlaybackConfig{AudioSelection: AudioSpecific},
	}
	req.Normalize()

	if err := req.Validate(); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     CallStatus
	}{
		{"completed", CallStatusCompleted},
		{"failed", CallStatusFailed},
		{"busy", CallStatusFailed},
		{"no-answer", CallStatusFailed},
		{"canceled", CallStatusFailed},
		{"ringing", CallStatusInProgress},
		{"queued", CallStatusInProgress},
		{"in-progress", CallStatusInProgress},
		{"something-new", CallStatusInProgress},
	}

	for _, tc := range cases {
		if got := MapProviderStatus(tc.provider); got != tc.want {
			t.Fatalf("MapProviderStatus(%q) = %q, want %q", tc.provider, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !CallStatusCompleted.Terminal() || !CallStatusFailed.Terminal() {
		t.Fatal("completed and failed must be terminal")
	}
	if CallStatusPending.Terminal() || CallStatusInProgress.Terminal() {
		t.Fatal("pending and in-progress must not be terminal")
	}
}
