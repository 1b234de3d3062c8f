package bootstrap

import (
	"profitloss-backend/internal/config"
	"profitloss-backend/internal/interfaces/router"
	"profitloss-backend/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
)

// New loads configuration, sets up logging and builds the Fiber app. The serverless
// handler under api/ imports this package because it cannot reach internal/.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, !cfg.IsProduction())
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
