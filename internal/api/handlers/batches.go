package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/dialburst/internal/domain"
)

type startBatchRequest struct {
	SessionToken      string   `json:"session_token"`
	PhoneNumbers      []string `json:"phone_numbers"`
	DelaySeconds      int      `json:"delay_between_calls"`
	SimultaneousCalls int      `json:"simultaneous_calls"`

	GreetingEnabled   bool   `json:"greeting_enabled"`
	GreetingText      string `json:"greeting_text"`
	PlaybackMode      string `json:"playback_mode"`
	AudioSelection    string `json:"audio_selection"`
	SelectedAudioFile string `json:"selected_audio_file"`
	TTSProvider       string `json:"tts_provider"`
	ExternalVoice     string `json:"external_voice"`
	PersistSynthesis  bool   `json:"persist_synthesis"`
}

type startBatchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	BatchID string `json:"batch_id"`
}

type stopBatchRequest struct {
	SessionToken string `json:"session_token"`
}

func (h *HandlerSet) startBatch(ctx *fiber.Ctx) error {
	var req startBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	session := sessionToken(ctx, req.SessionToken)
	if session == "" {
		return fiber.NewError(http.StatusBadRequest, "session token is required")
	}

	batchReq := domain.BatchRequest{
		DestinationNumbers: req.PhoneNumbers,
		DelaySeconds:       req.DelaySeconds,
		SimultaneousCount:  req.SimultaneousCalls,
		Playback: domain.PlaybackConfig{
			Mode:             domain.PlaybackMode(req.PlaybackMode),
			GreetingEnabled:  req.GreetingEnabled,
			GreetingText:     req.GreetingText,
			AudioSelection:   domain.AudioSelection(req.AudioSelection),
			AudioFile:        req.SelectedAudioFile,
			TTSProvider:      domain.TTSProvider(req.TTSProvider),
			ExternalVoice:    req.ExternalVoice,
			PersistSynthesis: req.PersistSynthesis,
		},
	}

	batchID, message, err := h.orch.StartBatch(batchReq, session)
	if err != nil {
		return translateError(err)
	}

	return ctx.JSON(startBatchResponse{
		Status:  "success",
		Message: message,
		BatchID: batchID.String(),
	})
}

func (h *HandlerSet) stopBatches(ctx *fiber.Ctx) error {
	var req stopBatchRequest
	// An empty body is fine when the token travels on the header.
	_ = ctx.BodyParser(&req)

	session := sessionToken(ctx, req.SessionToken)
	if session == "" {
		return fiber.NewError(http.StatusBadRequest, "session token is required")
	}

	cancelled := h.orch.StopSession(session)
	return ctx.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("Stopping calls (%d batch(es) cancelled)", cancelled),
	})
}

func sessionToken(ctx *fiber.Ctx, bodyToken string) string {
	if t := strings.TrimSpace(bodyToken); t != "" {
		return t
	}
	return strings.TrimSpace(ctx.Get("X-Session-Token"))
}
