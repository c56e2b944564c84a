package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// fetchAccount proxies a lightweight provider account lookup so an operator
// can verify credentials without placing a call.
func (h *HandlerSet) fetchAccount(ctx *fiber.Ctx) error {
	account, err := h.dialer.FetchAccount(ctx.Context())
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(account)
}
