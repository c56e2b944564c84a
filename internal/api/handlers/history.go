package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type attemptResponse struct {
	CallID         uuid.UUID `json:"call_id"`
	BatchID        uuid.UUID `json:"batch_id"`
	Destination    string    `json:"destination"`
	ProviderCallID string    `json:"provider_call_id,omitempty"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (h *HandlerSet) listHistory(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	attempts, err := h.history.ListRecentAttempts(ctx.Context(), limit)
	if err != nil {
		return translateError(err)
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			CallID:         a.CallID,
			BatchID:        a.BatchID,
			Destination:    a.Destination,
			ProviderCallID: a.ProviderCallID,
			Status:         a.Status,
			Message:        a.Message,
			OccurredAt:     a.OccurredAt,
		})
	}

	return ctx.JSON(fiber.Map{"attempts": out})
}
