package handlers

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/dialburst/internal/playback"
)

// voiceWebhook answers the provider's fetch for call instructions. The
// playback configuration travels on the query string, so this handler is
// stateless with respect to the originating batch.
func (h *HandlerSet) voiceWebhook(ctx *fiber.Ctx) error {
	values := url.Values{}
	ctx.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Set(string(key), string(value))
	})

	doc := h.builder.Build(ctx.Context(), playback.DecodeParams(values))
	body, err := doc.Render()
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "render response document")
	}

	ctx.Set(fiber.HeaderContentType, "text/xml; charset=utf-8")
	return ctx.SendString(body)
}

// statusWebhook ingests provider call-status callbacks. It acknowledges
// with 200 unconditionally; a retry storm from the provider helps nobody.
func (h *HandlerSet) statusWebhook(ctx *fiber.Ctx) error {
	providerCallID := ctx.FormValue("CallSid")
	providerStatus := ctx.FormValue("CallStatus")

	if providerCallID != "" {
		h.orch.HandleProviderStatus(ctx.Context(), providerCallID, providerStatus)
	}

	return ctx.SendStatus(http.StatusOK)
}
