package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// streamEvents serves the live status channel over SSE. Each connection is
// one subscription scoped to the session token from the query; events for
// other sessions are never visible here.
func (h *HandlerSet) streamEvents(ctx *fiber.Ctx) error {
	session := ctx.Query("session")
	if session == "" {
		return fiber.NewError(http.StatusBadRequest, "session query parameter is required")
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe(session)
	keepAlive := h.keepAlive

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				// Comment line keeps proxies from timing out the stream.
				fmt.Fprint(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
