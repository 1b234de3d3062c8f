package importing

import (
	"errors"
	"fmt"
	"time"

	importsvc "profitloss-backend/internal/application/importing"
	"profitloss-backend/internal/middleware"
	"profitloss-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	reportContentType = "text/csv; charset=utf-8"
	reportStampLayout = "20060102_150405"
)

type Handlers struct {
	Service *importsvc.Service
}

// sessionView is the client-facing shape of a session; the stored file path stays private.
type sessionView struct {
	ID         string                `json:"id"`
	FileName   string                `json:"file_name"`
	FileType   importsvc.FileType    `json:"file_type"`
	SheetName  string                `json:"sheet_name,omitempty"`
	Sheets     []importsvc.SheetInfo `json:"sheets,omitempty"`
	Columns    []string              `json:"columns"`
	SampleRows []map[string]string   `json:"sample_rows"`
	RowCount   int                   `json:"row_count"`
	Mapping    importsvc.Mapping     `json:"mapping"`
	Result     *importsvc.Result     `json:"result,omitempty"`
	ExpiresAt  time.Time             `json:"expires_at"`
}

func viewOf(s *importsvc.Session) sessionView {
	return sessionView{
		ID:         s.ID,
		FileName:   s.FileName,
		FileType:   s.FileType,
		SheetName:  s.SheetName,
		Sheets:     s.Sheets,
		Columns:    s.Columns,
		SampleRows: s.SampleRows,
		RowCount:   s.RowCount,
		Mapping:    s.Mapping,
		Result:     s.Result,
		ExpiresAt:  s.ExpiresAt,
	}
}

type mappingRequest struct {
	Mapping importsvc.Mapping `json:"mapping"`
	Limit   int               `json:"limit"`
}

type sheetRequest struct {
	SheetName string `json:"sheet_name"`
}

func writeError(c *fiber.Ctx, err error) error {
	var me *importsvc.MappingError
	switch {
	case errors.As(err, &me):
		return response.Error(c, "Invalid column mapping", fiber.StatusBadRequest, fiber.Map{
			"problems": me.Problems,
			"messages": me.Messages(),
		})
	case errors.Is(err, importsvc.ErrSessionNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, importsvc.ErrSessionExpired):
		return response.Error(c, err.Error(), fiber.StatusGone, nil)
	case errors.Is(err, importsvc.ErrNoResult):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, importsvc.ErrUnsupportedFileType),
		errors.Is(err, importsvc.ErrEmptyFile),
		errors.Is(err, importsvc.ErrCorruptFile),
		errors.Is(err, importsvc.ErrSheetNotFound),
		errors.Is(err, importsvc.ErrParse),
		errors.Is(err, importsvc.ErrNotSpreadsheet):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("Import request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}

// POST /api/v1/import/upload (multipart: file, sheet_name)
func (h *Handlers) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, "file is required", fiber.StatusBadRequest, nil)
	}
	f, err := fh.Open()
	if err != nil {
		return response.Error(c, "Failed to read uploaded file", fiber.StatusBadRequest, nil)
	}
	defer f.Close()
	sess, err := h.Service.Upload(c.Context(), importsvc.UploadInput{
		FileName:  fh.Filename,
		Content:   f,
		SheetName: c.FormValue("sheet_name"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return response.SuccessCreated(c, "File uploaded successfully", viewOf(sess), nil)
}

// GET /api/v1/import/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	sess, err := h.Service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Import session fetched successfully", viewOf(sess), nil)
}

// GET /api/v1/import/:id/sheets
func (h *Handlers) Sheets(c *fiber.Ctx) error {
	sess, err := h.Service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if sess.FileType != importsvc.FileTypeSpreadsheet {
		return writeError(c, importsvc.ErrNotSpreadsheet)
	}
	return response.Success(c, "Sheets fetched successfully", fiber.Map{
		"sheets":     sess.Sheets,
		"sheet_name": sess.SheetName,
	}, nil)
}

// POST /api/v1/import/:id/sheet
func (h *Handlers) SelectSheet(c *fiber.Ctx) error {
	var body sheetRequest
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	sess, err := h.Service.SelectSheet(c.Context(), c.Params("id"), body.SheetName)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Sheet selected successfully", viewOf(sess), nil)
}

// GET /api/v1/import/:id/mapping
func (h *Handlers) Mapping(c *fiber.Ctx) error {
	p, err := h.Service.MappingProposal(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Mapping proposal fetched successfully", p, nil)
}

// POST /api/v1/import/:id/preview
func (h *Handlers) Preview(c *fiber.Ctx) error {
	var body mappingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	p, err := h.Service.Preview(c.Context(), c.Params("id"), body.Mapping, body.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Preview generated successfully", p, nil)
}

// POST /api/v1/import/:id/execute
func (h *Handlers) Execute(c *fiber.Ctx) error {
	var body mappingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	res, err := h.Service.Execute(c.Context(), c.Params("id"), body.Mapping)
	if err != nil {
		return writeError(c, err)
	}
	log.Info().
		Str("trace_id", middleware.GetTraceID(c)).
		Str("session_id", c.Params("id")).
		Int("success", res.SuccessCount).
		Int("errors", res.ErrorCount).
		Msg("Import executed")
	return response.Success(c, fmt.Sprintf("Imported %d of %d rows", res.SuccessCount, res.TotalRows), res, nil)
}

// DELETE /api/v1/import/:id
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	if err := h.Service.Cancel(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Import cancelled successfully", fiber.Map{"id": c.Params("id")}, nil)
}

// GET /api/v1/import/:id/report/errors
func (h *Handlers) ErrorReport(c *fiber.Ctx) error {
	data, err := h.Service.ErrorReport(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	name := fmt.Sprintf("import_errors_%s.csv", time.Now().Format(reportStampLayout))
	return response.Attachment(c, name, reportContentType, data)
}

// GET /api/v1/import/:id/report/success
func (h *Handlers) SuccessReport(c *fiber.Ctx) error {
	data, err := h.Service.SuccessReport(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	name := fmt.Sprintf("import_success_%s.csv", time.Now().Format(reportStampLayout))
	return response.Attachment(c, name, reportContentType, data)
}

// POST /api/v1/import/:id/finish
func (h *Handlers) Finish(c *fiber.Ctx) error {
	res, err := h.Service.Finish(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, "Import session finished", res, nil)
}

func (h *Handlers) Register(r fiber.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/:id", h.Get)
	r.Get("/:id/sheets", h.Sheets)
	r.Post("/:id/sheet", h.SelectSheet)
	r.Get("/:id/mapping", h.Mapping)
	r.Post("/:id/preview", h.Preview)
	r.Post("/:id/execute", h.Execute)
	r.Delete("/:id", h.Cancel)
	r.Get("/:id/report/errors", h.ErrorReport)
	r.Get("/:id/report/success", h.SuccessReport)
	r.Post("/:id/finish", h.Finish)
}
