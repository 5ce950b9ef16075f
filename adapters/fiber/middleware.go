package fiber

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
)

const HeaderConfirm = "X-Confirm"

// requireSession lets a request through only while the dashboard session is
// authenticated, and stores the current user in the context for downstream handlers.
func requireSession(b *bantay.Bantay) func(fiber.Ctx) (bool, error) {
	return func(c fiber.Ctx) (bool, error) {
		state := b.Session.State()
		if !state.Authenticated() {
			return false, c.Status(fiber.StatusUnauthorized).JSON(core.ErrorResponse{
				Error:   core.ErrNotAuthenticated.Error(),
				Message: string(state.Status),
				Code:    fiber.StatusUnauthorized,
			})
		}

		c.Locals("user", state.User)
		return true, nil
	}
}

// RequestID tags every request and response with an X-Request-ID
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals("requestid", id)
		return c.Next()
	}
}

// headerConfirmer answers confirmation prompts with the X-Confirm request header
func headerConfirmer(c fiber.Ctx) core.Confirmer {
	answer := c.Get(HeaderConfirm) == "true"
	return core.ConfirmerFunc(func(_ context.Context, _ string) bool {
		return answer
	})
}
