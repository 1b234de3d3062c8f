package middleware

import (
	"errors"

	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler for errors no handler turned into a response.
// Fiber errors keep their code and message; anything else is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	details := map[string]interface{}{}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if traceID := GetTraceID(c); traceID != "" {
		details["trace_id"] = traceID
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("Unhandled error")
	}

	return response.Error(c, message, code, details)
}
