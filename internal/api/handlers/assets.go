package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type renameAudioRequest struct {
	NewName string `json:"new_name"`
}

func (h *HandlerSet) listAudio(ctx *fiber.Ctx) error {
	files, err := h.library.Snapshot()
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(fiber.Map{"files": files})
}

func (h *HandlerSet) renameAudio(ctx *fiber.Ctx) error {
	var req renameAudioRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.NewName == "" {
		return fiber.NewError(http.StatusBadRequest, "new_name is required")
	}

	if err := h.library.Rename(ctx.Params("name"), req.NewName); err != nil {
		return translateError(err)
	}
	return ctx.JSON(fiber.Map{"status": "success"})
}

func (h *HandlerSet) deleteAudio(ctx *fiber.Ctx) error {
	if err := h.library.Delete(ctx.Params("name")); err != nil {
		return translateError(err)
	}
	return ctx.JSON(fiber.Map{"status": "success"})
}
