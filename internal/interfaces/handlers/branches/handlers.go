package branches

import (
	"errors"
	"strconv"

	branchsvc "profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *branchsvc.Service
}

type branchRequest struct {
	BranchCode string `json:"branch_code"`
	BranchName string `json:"branch_name"`
	IsActive   *bool  `json:"is_active"`
}

func (r branchRequest) input() branchsvc.Input {
	return branchsvc.Input{BranchCode: r.BranchCode, BranchName: r.BranchName, IsActive: r.IsActive}
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, branchsvc.ErrBranchNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, domain.ErrBranchInUse):
		return response.Error(c, "Branch has related projects and cannot be deleted", fiber.StatusConflict, nil)
	case errors.Is(err, domain.ErrDuplicateValue):
		return response.Error(c, "Branch code or name already exists", fiber.StatusConflict, fiber.Map{"fields": domain.Fields(err)})
	case domain.IsValidation(err):
		return response.Error(c, "Validation failed", fiber.StatusBadRequest, fiber.Map{"fields": domain.Fields(err)})
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Branch request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// GET /api/v1/branches?search=&is_active=
func (h *Handlers) List(c *fiber.Ctx) error {
	f := branchsvc.ListFilter{Search: c.Query("search")}
	if v := c.Query("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return response.Error(c, "is_active must be true or false", fiber.StatusBadRequest, nil)
		}
		f.Active = &active
	}
	list, err := h.Service.List(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Branches fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/branches/active
func (h *Handlers) ListActive(c *fiber.Ctx) error {
	list, err := h.Service.ListActive(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Active branches fetched successfully", list, nil)
}

// GET /api/v1/branches/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid branch id", fiber.StatusBadRequest, nil)
	}
	b, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Branch fetched successfully", b, nil)
}

// POST /api/v1/branches
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body branchRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	b, err := h.Service.Create(c.Context(), body.input())
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "Branch created successfully", b, nil)
}

// PUT /api/v1/branches/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid branch id", fiber.StatusBadRequest, nil)
	}
	var body branchRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	b, err := h.Service.Update(c.Context(), id, body.input())
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Branch updated successfully", b, nil)
}

// DELETE /api/v1/branches/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid branch id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Branch deleted successfully", fiber.Map{"id": id}, nil)
}

// PATCH /api/v1/branches/:id/toggle-active
func (h *Handlers) ToggleActive(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid branch id", fiber.StatusBadRequest, nil)
	}
	b, err := h.Service.ToggleActive(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Branch status updated successfully", b, nil)
}

// Register mounts the branch routes on r.
func (h *Handlers) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Get("/active", h.ListActive)
	r.Get("/:id", h.Get)
	r.Post("/", h.Create)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
	r.Patch("/:id/toggle-active", h.ToggleActive)
}
