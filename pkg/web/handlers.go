// Package web provides HTTP handlers and REST API endpoints for definitions, workflows and triggers.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/multierr"

	"github.com/dukex/flowhost/pkg/host"
	"github.com/dukex/flowhost/pkg/loader"
	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/registry"
	"github.com/dukex/flowhost/pkg/services"
)

// Triggerer delivers a trigger to the workflow host.
type Triggerer interface {
	Trigger(ctx context.Context, activityName string, arguments *models.Variables) (*host.TriggerResult, error)
}

type APIHandlers struct {
	workflowService *services.Workflow
	triggerer       Triggerer
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	triggerer Triggerer,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		triggerer:       triggerer,
		validator:       validator,
		registry:        registry,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	d := router.Group("/definitions")
	d.Post("/", h.CreateDefinition)
	d.Put("/:id", h.UpdateDefinition)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)

	router.Post("/triggers/:activity", h.Trigger)
	router.Get("/activities", h.GetActivities)
	router.Get("/activities/:type", h.GetActivity)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Kind = models.WorkflowKind(c.Query("kind"))
	req.Status = models.WorkflowStatus(c.Query("status"))
	req.DefinitionID = c.Query("definition_id")
	req.BlockedOn = c.Query("blocked_on")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CreateDefinition accepts a YAML or JSON definition document.
func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	definition, err := loader.Parse(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	created, err := h.workflowService.Create(c.Context(), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateDefinition replaces a definition. An If-Match header carrying the
// version read earlier makes the update conditional.
func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	definition, err := loader.Parse(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	if ifMatch := c.Get(fiber.HeaderIfMatch); ifMatch != "" {
		version, err := strconv.ParseInt(ifMatch, 10, 64)
		if err != nil || version < 1 {
			return badRequest(c, "If-Match must be a workflow version")
		}

		definition.Version = version
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) Trigger(c fiber.Ctx) error {
	activityName := c.Params("activity")

	var req TriggerRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.triggerer.Trigger(c.Context(), activityName, req.Arguments)
	if err != nil && (result == nil || len(result.Started)+len(result.Resumed) == 0) {
		return handleServiceError(c, err)
	}

	response := TriggerResponse{
		ActivityName: activityName,
		Started:      result.Started,
		Resumed:      result.Resumed,
	}

	if err != nil {
		for _, e := range multierr.Errors(err) {
			response.Errors = append(response.Errors, e.Error())
		}

		return c.Status(fiber.StatusMultiStatus).JSON(response)
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetActivities(c fiber.Ctx) error {
	factories := h.registry.GetAvailableActivities()

	activities := make([]ActivityResponse, 0, len(factories))
	for _, factory := range factories {
		activities = append(activities, TransformActivityResponse(factory))
	}

	return c.JSON(activities)
}

func (h *APIHandlers) GetActivity(c fiber.Ctx) error {
	factory, ok := h.registry.GetActivity(c.Params("type"))
	if !ok {
		return notFound(c, "activity type "+c.Params("type")+" is not registered")
	}

	return c.JSON(TransformActivityResponse(factory))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())
	activityCount := len(h.registry.GetAvailableActivities())

	status := "unhealthy"
	message := "Flowhost is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && activityCount > 0 {
		status = "healthy"
		message = "Flowhost is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   strconv.Itoa(activityCount) + " activity types registered",
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
