package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/flowhost/pkg/invoker"
	"github.com/dukex/flowhost/pkg/loader"
	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/services"
)

// Problem types returned in the "type" member of error responses.
const (
	problemValidation       = "validation_error"
	problemNotFound         = "not_found"
	problemWorkflowNotFound = "workflow_not_found"
	problemConflict         = "conflict"
	problemCancelled        = "cancelled"
	problemInternal         = "internal_error"
)

// respond writes an RFC 7807 problem with the given status.
func respond(c fiber.Ctx, status int, problemType, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}

func badRequest(c fiber.Ctx, detail string) error {
	return respond(c, fiber.StatusBadRequest, problemValidation, detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return respond(c, fiber.StatusNotFound, problemNotFound, detail)
}

// handleServiceError maps service, storage and invocation errors to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err),
		invoker.IsInvalidResumeTarget(err),
		errors.Is(err, loader.ErrInvalidDocument),
		errors.Is(err, loader.ErrEmptyDocument):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		return respond(c, fiber.StatusConflict, problemConflict, err.Error())

	case persistence.IsWorkflowNotFound(err):
		return respond(c, fiber.StatusNotFound, problemWorkflowNotFound, "workflow not found")

	case invoker.IsCancelled(err):
		return respond(c, fiber.StatusServiceUnavailable, problemCancelled, err.Error())

	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType(problemInternal).
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
