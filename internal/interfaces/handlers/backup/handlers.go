package backup

import (
	"errors"

	backupsvc "profitloss-backend/internal/application/backup"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const jsonContentType = "application/json; charset=utf-8"

type Handlers struct {
	Service *backupsvc.Service
}

type restoreRequest struct {
	SessionKey string `json:"session_key"`
	Confirm    bool   `json:"confirm"`
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, backupsvc.ErrBackupNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, backupsvc.ErrNotJSON),
		errors.Is(err, backupsvc.ErrEncoding),
		errors.Is(err, backupsvc.ErrMalformed),
		errors.Is(err, backupsvc.ErrInvalidBackup),
		errors.Is(err, backupsvc.ErrSessionKeyRequired),
		errors.Is(err, backupsvc.ErrConfirmationRequired),
		errors.Is(err, backupsvc.ErrNoBranch):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Backup request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// GET /api/v1/backup/create
func (h *Handlers) Create(c *fiber.Ctx) error {
	name, data, err := h.Service.Export(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return response.Attachment(c, name, jsonContentType, data)
}

// GET /api/v1/backup/info
func (h *Handlers) Info(c *fiber.Ctx) error {
	info, err := h.Service.Info(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Backup info fetched successfully", info, nil)
}

// POST /api/v1/backup/upload (multipart: backup_file)
func (h *Handlers) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("backup_file")
	if err != nil {
		return response.Error(c, "backup_file is required", fiber.StatusBadRequest, nil)
	}
	f, err := fh.Open()
	if err != nil {
		return response.Error(c, "Failed to read uploaded file", fiber.StatusBadRequest, nil)
	}
	defer f.Close()
	up, err := h.Service.Upload(c.Context(), fh.Filename, f)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Backup file validated successfully", up, nil)
}

// POST /api/v1/backup/restore
func (h *Handlers) Restore(c *fiber.Ctx) error {
	var body restoreRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	stats, err := h.Service.Restore(c.Context(), body.SessionKey, body.Confirm)
	if err != nil {
		return writeError(c, err)
	}
	log.Info().Str("trace_id", middleware.GetTraceID(c)).Int("records", stats.TotalCreated).Msg("Backup restored")
	return response.Success(c, "Backup restored successfully", stats, nil)
}

func (h *Handlers) Register(r fiber.Router) {
	r.Get("/create", h.Create)
	r.Get("/info", h.Info)
	r.Post("/upload", h.Upload)
	r.Post("/restore", h.Restore)
}
