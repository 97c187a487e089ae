package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain"
)

// errorMapping traduce un error de dominio a status HTTP y código.
type errorMapping struct {
	target error
	status int
	code   string
}

// El orden importa: los más específicos primero.
var errorMappings = []errorMapping{
	{domain.ErrInvalidReceiver, fiber.StatusBadRequest, "INVALID_RECEIVER"},
	{domain.ErrUnresolvableIdentity, fiber.StatusBadRequest, "UNRESOLVABLE_IDENTITY"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrArtifactUnavailable, fiber.StatusNotFound, "ARTIFACT_UNAVAILABLE"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrAlreadyConverted, fiber.StatusConflict, "ALREADY_CONVERTED"},
	{domain.ErrDuplicateNaturalKey, fiber.StatusConflict, "DUPLICATE_DOCUMENT"},
	{domain.ErrDuplicateSale, fiber.StatusConflict, "DUPLICATE_SALE"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrUpstreamRejected, fiber.StatusUnprocessableEntity, "UPSTREAM_REJECTED"},
	{domain.ErrUpstreamTransport, fiber.StatusBadGateway, "UPSTREAM_TRANSPORT"},
}

// errorStatus resuelve status HTTP y código para err.
func errorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

// writeError responde con el status que corresponde al error.
func writeError(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
