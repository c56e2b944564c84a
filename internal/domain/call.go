package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/acme/dialburst/pkg/errors"
)

// CallStatus enumerates lifecycle stages for an individual call attempt.
type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// Terminal reports whether the status is a final one.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// MapProviderStatus collapses provider-specific call states onto the local
// lifecycle. Unrecognized states are treated as in-progress so a stray
// webhook never flips a live call backwards.
func MapProviderStatus(provider string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "completed":
		return CallStatusCompleted
	case "failed", "busy", "no-answer", "canceled":
		return CallStatusFailed
	default:
		return CallStatusInProgress
	}
}

// CallRecord is the local record of one call attempt and its lifecycle.
type CallRecord struct {
	CallID         uuid.UUID
	ProviderCallID string
	BatchID        uuid.UUID
	Destination    string
	Display        string
	Status         CallStatus
	Message        string
	SessionToken   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MaxSimultaneousCalls is the hard cap on concurrent calls per batch.
const MaxSimultaneousCalls = 50

// PlaybackMode selects what the callee hears.
type PlaybackMode string

const (
	PlaybackTTSOnly PlaybackMode = "tts_only"
	PlaybackTTSMP3  PlaybackMode = "tts_mp3"
	PlaybackMP3Only PlaybackMode = "mp3_only"
)

// AudioSelection selects how the audio file is chosen.
type AudioSelection string

const (
	AudioRandom   AudioSelection = "random"
	AudioSpecific AudioSelection = "specific"
)

// TTSProvider selects the speech synthesis backend.
type TTSProvider string

const (
	TTSBuiltin  TTSProvider = "builtin"
	TTSExternal TTSProvider = "external"
)

// PlaybackConfig describes the greeting and audio playback for each call.
type PlaybackConfig struct {
	Mode             PlaybackMode
	GreetingEnabled  bool
	GreetingText     string
	AudioSelection   AudioSelection
	AudioFile        string
	TTSProvider      TTSProvider
	ExternalVoice    string
	PersistSynthesis bool
}

// BatchRequest is an operator request to start one call batch.
type BatchRequest struct {
	DestinationNumbers []string
	DelaySeconds       int
	SimultaneousCount  int
	Playback           PlaybackConfig
}

// Normalize trims blank destinations and clamps counts to their valid
// ranges. SimultaneousCount above one is only honoured for a single
// destination; everything is capped at MaxSimultaneousCalls.
func (r *BatchRequest) Normalize() {
	numbers := make([]string, 0, len(r.DestinationNumbers))
	for _, n := range r.DestinationNumbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		numbers = append(numbers, n)
	}
	r.DestinationNumbers = numbers

	if r.SimultaneousCount < 1 {
		r.SimultaneousCount = 1
	}
	if r.SimultaneousCount > MaxSimultaneousCalls {
		r.SimultaneousCount = MaxSimultaneousCalls
	}
	if len(r.DestinationNumbers) != 1 {
		r.SimultaneousCount = 1
	}

	if r.DelaySeconds < 1 {
		r.DelaySeconds = 1
	}

	if r.Playback.Mode == "" {
		r.Playback.Mode = PlaybackMP3Only
	}
	if r.Playback.AudioSelection == "" {
		r.Playback.AudioSelection = AudioRandom
	}
	if r.Playback.TTSProvider == "" {
		r.Playback.TTSProvider = TTSBuiltin
	}
}

// Validate checks the normalized request against domain invariants.
func (r *BatchRequest) Validate() error {
	if len(r.DestinationNumbers) == 0 {
		return fmt.Errorf("%w: at least one destination number is required", apperrors.ErrValidation)
	}
	switch r.Playback.Mode {
	case PlaybackTTSOnly, PlaybackTTSMP3, PlaybackMP3Only:
	default:
		return fmt.Errorf("%w: unknown playback mode %q", apperrors.ErrValidation, r.Playback.Mode)
	}
	switch r.Playback.AudioSelection {
	case AudioRandom, AudioSpecific:
	default:
		return fmt.Errorf("%w: unknown audio selection %q", apperrors.ErrValidation, r.Playback.AudioSelection)
	}
	if r.Playback.AudioSelection == AudioSpecific && r.Playback.AudioFile == "" {
		return fmt.Errorf("%w: audio file is required for specific selection", apperrors.ErrValidation)
	}
	switch r.Playback.TTSProvider {
	case TTSBuiltin, TTSExternal:
	default:
		return fmt.Errorf("%w: unknown tts provider %q", apperrors.ErrValidation, r.Playback.TTSProvider)
	}
	return nil
}
