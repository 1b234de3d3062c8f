package export

import (
	"strings"

	exportsvc "profitloss-backend/internal/application/export"
	projecthandlers "profitloss-backend/internal/interfaces/handlers/projects"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *exportsvc.Service
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Export failed")
	return response.Error(c, "Export failed", fiber.StatusInternalServerError, nil)
}

// GET /api/v1/export/csv
func (h *Handlers) CSV(c *fiber.Ctx) error {
	f, err := projecthandlers.ParseFilter(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	file, err := h.Service.CSV(c.Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Attachment(c, file.Name, file.ContentType, file.Data)
}

// GET /api/v1/export/excel
func (h *Handlers) Excel(c *fiber.Ctx) error {
	f, err := projecthandlers.ParseFilter(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	file, err := h.Service.Excel(c.Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Attachment(c, file.Name, file.ContentType, file.Data)
}

// GET /api/v1/export/csv/download-link
func (h *Handlers) DownloadLink(c *fiber.Ctx) error {
	f, err := projecthandlers.ParseFilter(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	link, err := h.Service.DownloadLink(c.Context(), f, strings.TrimSuffix(c.Path(), "/download-link"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, link.Message, link, nil)
}

func (h *Handlers) Register(r fiber.Router) {
	r.Get("/csv", h.CSV)
	r.Get("/csv/download-link", h.DownloadLink)
	r.Get("/excel", h.Excel)
}
