package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"medvault/internal/http/middleware"
	"medvault/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// serviceError maps the service error taxonomy onto HTTP responses.
// Authorization failures on reads already surface from the service as
// not-found, so a 404 here never confirms that a record exists.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "record not found")
	case errors.Is(err, service.ErrPrincipalNotFound):
		return writeError(c, fiber.StatusNotFound, "PRINCIPAL_NOT_FOUND", "principal not found")
	case errors.Is(err, service.ErrNotAuthorized):
		return writeError(c, fiber.StatusForbidden, "NOT_AUTHORIZED", "only the record owner may do this")
	case errors.Is(err, service.ErrAlreadyGranted):
		return writeError(c, fiber.StatusConflict, "ALREADY_GRANTED", "access already granted")
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrInvalidRecordType),
		errors.Is(err, service.ErrInvalidPrincipalKind),
		errors.Is(err, service.ErrKindMismatch),
		errors.Is(err, service.ErrOwnerGrant):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrIntegrityViolation):
		return writeError(c, fiber.StatusBadGateway, "STORAGE_ERROR", "stored content failed verification")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
