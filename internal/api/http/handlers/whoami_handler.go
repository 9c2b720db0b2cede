package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/auth"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Whoami GET /api/whoami reports the subject and scope of the presented token.
func Whoami(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no authenticated caller")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"subject": principal.Subject, "scope": principal.Scope}})
}
