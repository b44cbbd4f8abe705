package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/api/dto"
	"github.com/siberialabel/telegram-support-bot/internal/engine"
	"github.com/siberialabel/telegram-support-bot/internal/queue"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// EventsHandler receives inbound chat events from the transport webhook.
type EventsHandler struct {
	engine *engine.Engine
	queue  *queue.DirectiveQueue
	logger *zap.Logger
}

// NewEventsHandler constructs handler.
func NewEventsHandler(eng *engine.Engine, q *queue.DirectiveQueue, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{engine: eng, queue: q, logger: logger}
}

// Handle POST /events.
func (h *EventsHandler) Handle(c *fiber.Ctx) error {
	var req dto.InboundEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SenderID == "" || req.Kind == "" {
		return apperrors.NewValidationError("sender_id and kind required", nil)
	}

	result, err := h.engine.HandleEvent(c.UserContext(), req.ToInboundEvent())
	if err != nil {
		return err
	}

	// directives go through the durable queue; the delivery worker executes
	// them against the transport
	for _, d := range result.Directives {
		if err := h.queue.Enqueue(c.UserContext(), d); err != nil {
			h.logger.Error("enqueue directive",
				zap.String("directive_id", d.ID),
				zap.String("kind", string(d.Kind)),
				zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{"data": dto.FromResult(result)})
}
