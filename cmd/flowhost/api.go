package main

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/flowhost/pkg/persistence"
	"github.com/dukex/flowhost/pkg/registry"
	"github.com/dukex/flowhost/pkg/services"
	"github.com/dukex/flowhost/pkg/web"
)

type API struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	triggerer   web.Triggerer
	validate    *validator.Validate
}

func NewAPI(persistence persistence.Persistence, registry *registry.Registry, triggerer web.Triggerer) *API {
	return &API{
		persistence: persistence,
		registry:    registry,
		triggerer:   triggerer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(services.NewWorkflow(a.persistence), a.triggerer, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowhost")
	})

	handlers.Register(app)

	return app
}
