package projects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	projectsvc "profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *projectsvc.Service
}

type projectRequest struct {
	ProjectCode      string          `json:"project_code"`
	ProjectName      string          `json:"project_name"`
	BranchID         uint            `json:"branch_id"`
	FiscalYear       int             `json:"fiscal_year"`
	OrderProbability int             `json:"order_probability"`
	Revenue          decimal.Decimal `json:"revenue"`
	Expenses         decimal.Decimal `json:"expenses"`
}

func (r projectRequest) fields() domain.ProjectFields {
	return domain.ProjectFields{
		ProjectCode:      r.ProjectCode,
		ProjectName:      r.ProjectName,
		BranchID:         r.BranchID,
		FiscalYear:       r.FiscalYear,
		OrderProbability: domain.OrderProbability(r.OrderProbability),
		Revenue:          r.Revenue,
		Expenses:         r.Expenses,
	}
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, projectsvc.ErrProjectNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, domain.ErrDuplicateValue):
		return response.Error(c, "Project code already exists", fiber.StatusConflict, fiber.Map{"fields": domain.Fields(err)})
	case domain.IsValidation(err):
		return response.Error(c, "Validation failed", fiber.StatusBadRequest, fiber.Map{"fields": domain.Fields(err)})
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Project request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// ParseFilter reads the project search filters shared by the list and export endpoints.
func ParseFilter(c *fiber.Ctx) (projectsvc.Filter, error) {
	f := projectsvc.Filter{
		Search:      c.Query("search"),
		ProjectCode: c.Query("project_code"),
		ProjectName: c.Query("project_name"),
	}
	var err error
	if f.FiscalYear, err = queryInt(c, "fiscal_year"); err != nil {
		return f, err
	}
	branchID, err := queryInt(c, "branch_id")
	if err != nil {
		return f, err
	}
	if branchID < 0 {
		return f, fmt.Errorf("branch_id must be a positive integer")
	}
	f.BranchID = uint(branchID)
	if f.MinProbability, err = queryIntPtr(c, "order_probability_min"); err != nil {
		return f, err
	}
	if f.MaxProbability, err = queryIntPtr(c, "order_probability_max"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(c, "page"); err != nil {
		return f, err
	}
	if f.PerPage, err = queryInt(c, "per_page"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func queryIntPtr(c *fiber.Ctx, key string) (*int, error) {
	if strings.TrimSpace(c.Query(key)) == "" {
		return nil, nil
	}
	n, err := queryInt(c, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryDecimal(c *fiber.Ctx, key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number", key)
	}
	return d, nil
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// GET /api/v1/projects?search=&project_code=&project_name=&fiscal_year=&branch_id=&order_probability_min=&order_probability_max=&page=&per_page=
func (h *Handlers) Search(c *fiber.Ctx) error {
	f, err := ParseFilter(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	page, err := h.Service.Search(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Projects fetched successfully", page.Items, response.Pagination{
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	})
}

// GET /api/v1/projects/gross-profit?revenue=&expenses=
func (h *Handlers) GrossProfit(c *fiber.Ctx) error {
	revenue, err := queryDecimal(c, "revenue")
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	expenses, err := queryDecimal(c, "expenses")
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	return response.Success(c, "Gross profit calculated successfully", projectsvc.CalculateGrossProfit(revenue, expenses), nil)
}

// GET /api/v1/projects/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid project id", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Project fetched successfully", p.View(), nil)
}

// POST /api/v1/projects
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body projectRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Create(c.Context(), body.fields())
	if err != nil {
		return writeError(c, err)
	}
	if full, err := h.Service.Get(c.Context(), p.ID); err == nil {
		p = full
	}
	return response.SuccessCreated(c, "Project created successfully", p.View(), nil)
}

// PUT /api/v1/projects/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid project id", fiber.StatusBadRequest, nil)
	}
	var body projectRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Update(c.Context(), id, body.fields())
	if err != nil {
		return writeError(c, err)
	}
	if full, err := h.Service.Get(c.Context(), p.ID); err == nil {
		p = full
	}
	return response.Success(c, "Project updated successfully", p.View(), nil)
}

// DELETE /api/v1/projects/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.Error(c, "Invalid project id", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), id); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Project deleted successfully", fiber.Map{"id": id}, nil)
}

func (h *Handlers) Register(r fiber.Router) {
	r.Get("/", h.Search)
	r.Get("/gross-profit", h.GrossProfit)
	r.Get("/:id", h.Get)
	r.Post("/", h.Create)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
}
