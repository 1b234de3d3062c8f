package fiscalyears

import (
	"errors"
	"strconv"

	fysvc "profitloss-backend/internal/application/fiscalyears"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *fysvc.Service
}

type fiscalYearRequest struct {
	Year     int    `json:"year"`
	YearName string `json:"year_name"`
	IsActive *bool  `json:"is_active"`
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, fysvc.ErrFiscalYearNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, domain.ErrDuplicateValue):
		return response.Error(c, "Fiscal year already exists", fiber.StatusConflict, fiber.Map{"fields": domain.Fields(err)})
	case domain.IsValidation(err):
		return response.Error(c, "Validation failed", fiber.StatusBadRequest, fiber.Map{"fields": domain.Fields(err)})
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Fiscal year request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// GET /api/v1/fiscal-years
func (h *Handlers) List(c *fiber.Ctx) error {
	list, err := h.Service.List(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Fiscal years fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/fiscal-years/active
func (h *Handlers) ListActive(c *fiber.Ctx) error {
	list, err := h.Service.ListActive(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Active fiscal years fetched successfully", list, nil)
}

// GET /api/v1/fiscal-years/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid fiscal year id", fiber.StatusBadRequest, nil)
	}
	fy, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Fiscal year fetched successfully", fy, nil)
}

// POST /api/v1/fiscal-years
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body fiscalYearRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	fy, err := h.Service.Create(c.Context(), fysvc.Input{Year: body.Year, YearName: body.YearName, IsActive: body.IsActive})
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Fiscal year created successfully", fy, nil)
}

// PUT /api/v1/fiscal-years/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid fiscal year id", fiber.StatusBadRequest, nil)
	}
	var body fiscalYearRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	fy, err := h.Service.Update(c.Context(), id, fysvc.Input{Year: body.Year, YearName: body.YearName, IsActive: body.IsActive})
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Fiscal year updated successfully", fy, nil)
}

// DELETE /api/v1/fiscal-years/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid fiscal year id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Fiscal year deleted successfully", fiber.Map{"id": id}, nil)
}

// PATCH /api/v1/fiscal-years/:id/toggle-active
func (h *Handlers) ToggleActive(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid fiscal year id", fiber.StatusBadRequest, nil)
	}
	fy, err := h.Service.ToggleActive(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Fiscal year status updated successfully", fy, nil)
}

func (h *Handlers) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Get("/active", h.ListActive)
	r.Get("/:id", h.Get)
	r.Post("/", h.Create)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
	r.Patch("/:id/toggle-active", h.ToggleActive)
}
