package router

import (
	"context"
	"path/filepath"
	"time"

	backupsvc "profitloss-backend/internal/application/backup"
	branchsvc "profitloss-backend/internal/application/branches"
	exportsvc "profitloss-backend/internal/application/export"
	fysvc "profitloss-backend/internal/application/fiscalyears"
	importsvc "profitloss-backend/internal/application/importing"
	projectsvc "profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/config"
	"profitloss-backend/internal/infrastructure/database"
	"profitloss-backend/internal/infrastructure/sessionstore"
	backuphandler "profitloss-backend/internal/interfaces/handlers/backup"
	branchhandler "profitloss-backend/internal/interfaces/handlers/branches"
	exporthandler "profitloss-backend/internal/interfaces/handlers/export"
	fyhandler "profitloss-backend/internal/interfaces/handlers/fiscalyears"
	healthhandler "profitloss-backend/internal/interfaces/handlers/health"
	importhandler "profitloss-backend/internal/interfaces/handlers/importing"
	projecthandler "profitloss-backend/internal/interfaces/handlers/projects"
	"profitloss-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// OpenRedis returns nil when no URL is configured; Redis is optional.
func OpenRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// CreateApp opens the database (migrating it) and the optional Redis client, then
// builds the Fiber app with global middleware and every route group.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}
	rdb, err := OpenRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewApp(cfg, db, rdb), db, rdb, nil
}

// NewApp wires services and handlers over an open database and optional Redis client.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.MaxUploadMB << 20,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	store := sessionstore.New(rdb, db)
	if g, ok := store.(*sessionstore.Gorm); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if n, err := g.PurgeExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to purge expired import sessions")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("Purged expired import sessions")
		}
		cancel()
	}

	branches := &branchsvc.Service{DB: db}
	fiscalYears := &fysvc.Service{DB: db}
	projects := &projectsvc.Service{DB: db}

	api := app.Group("/api/v1")

	(&branchhandler.Handlers{Service: branches}).Register(api.Group("/branches"))
	(&fyhandler.Handlers{Service: fiscalYears}).Register(api.Group("/fiscal-years"))
	(&projecthandler.Handlers{Service: projects}).Register(api.Group("/projects"))

	(&importhandler.Handlers{Service: &importsvc.Service{
		DB:        db,
		Store:     store,
		Branches:  branches,
		Projects:  projects,
		UploadDir: filepath.Join(cfg.UploadDir, "imports"),
		TTL:       cfg.ImportSessionTTL,
	}}).Register(api.Group("/import"))

	(&exporthandler.Handlers{Service: &exportsvc.Service{Projects: projects}}).Register(api.Group("/export"))

	(&backuphandler.Handlers{Service: &backupsvc.Service{DB: db, UploadDir: filepath.Join(cfg.UploadDir, "backups")}}).Register(api.Group("/backup"))

	return app
}
