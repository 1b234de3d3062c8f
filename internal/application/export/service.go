package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName        = "プロジェクト一覧"
	timestampLayout  = "2006-01-02 15:04:05"
	fileStampLayout  = "20060102_150405"
	maxColumnWidth   = 30
	headerFill       = "366092"
	ContentTypeCSV   = "text/csv; charset=utf-8"
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Columns is the header row shared by the CSV and Excel exports.
var Columns = []string{
	"プロジェクトコード",
	"プロジェクト名",
	"支社名",
	"支社コード",
	"売上の年度",
	"受注角度",
	"受注角度(数値)",
	"売上（契約金）",
	"経費（トータル）",
	"粗利",
	"作成日",
	"更新日",
}

// currency columns (revenue, expenses, gross profit) get a thousands separator in Excel
const firstCurrencyColumn, lastCurrencyColumn = 8, 10

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Service struct {
	Projects *projects.Service
	Now      func() time.Time
}

// File is a rendered export ready to be sent as an attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Records     int
}

type DownloadLink struct {
	DownloadURL string `json:"download_url"`
	RecordCount int64  `json:"record_count"`
	Message     string `json:"message"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) fileName(ext string) string {
	return fmt.Sprintf("projects_export_%s.%s", s.now().Format(fileStampLayout), ext)
}

// row renders one project as cell values. Currency stays numeric so Excel can format it.
func row(p *domain.Project) []interface{} {
	var branchName, branchCode string
	if p.Branch != nil {
		branchName = p.Branch.BranchName
		branchCode = p.Branch.BranchCode
	}
	return []interface{}{
		p.ProjectCode,
		p.ProjectName,
		branchName,
		branchCode,
		p.FiscalYear,
		p.OrderProbability.Label(),
		p.OrderProbability.Value(),
		p.Revenue.InexactFloat64(),
		p.Expenses.InexactFloat64(),
		p.GrossProfit().InexactFloat64(),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

func csvRow(p *domain.Project) []string {
	rec := make([]string, 0, len(Columns))
	for i, v := range row(p) {
		switch i {
		case 7:
			rec = append(rec, p.Revenue.String())
		case 8:
			rec = append(rec, p.Expenses.String())
		case 9:
			rec = append(rec, p.GrossProfit().String())
		default:
			rec = append(rec, fmt.Sprint(v))
		}
	}
	return rec
}

// CSV renders the filtered projects as UTF-8 CSV with a BOM so spreadsheet tools detect
// the encoding.
func (s *Service) CSV(ctx context.Context, f projects.Filter) (*File, error) {
	list, err := s.Projects.All(ctx, f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for i := range list {
		if err := w.Write(csvRow(&list[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("Failed to write CSV export: %w", err)
	}
	log.Info().Int("records", len(list)).Msg("CSV export generated")
	return &File{Name: s.fileName("csv"), ContentType: ContentTypeCSV, Data: buf.Bytes(), Records: len(list)}, nil
}

// Excel renders the filtered projects into a single styled sheet.
func (s *Service) Excel(ctx context.Context, f projects.Filter) (*File, error) {
	list, err := s.Projects.All(ctx, f)
	if err != nil {
		return nil, err
	}
	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	widths := make([]int, len(Columns))
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
		widths[i] = utf8.RuneCountInString(c)
	}
	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}
	for i := range list {
		values := row(&list[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := book.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, err
		}
		for j, v := range values {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[j] {
				widths[j] = n
			}
		}
	}

	if err := styleSheet(book, len(list), widths); err != nil {
		return nil, fmt.Errorf("Failed to style Excel export: %w", err)
	}
	out, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("Failed to write Excel export: %w", err)
	}
	log.Info().Int("records", len(list)).Msg("Excel export generated")
	return &File{Name: s.fileName("xlsx"), ContentType: ContentTypeExcel, Data: out.Bytes(), Records: len(list)}, nil
}

func styleSheet(book *excelize.File, rows int, widths []int) error {
	headerStyle, err := book.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := book.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return err
	}

	if rows > 0 {
		format := "#,##0"
		money, err := book.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return err
		}
		from, _ := excelize.CoordinatesToCellName(firstCurrencyColumn, 2)
		to, _ := excelize.CoordinatesToCellName(lastCurrencyColumn, rows+1)
		if err := book.SetCellStyle(SheetName, from, to, money); err != nil {
			return err
		}
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := w + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := book.SetColWidth(SheetName, name, name, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

// DownloadLink counts the projects an export with f would contain and builds the
// CSV URL carrying the same filters.
func (s *Service) DownloadLink(ctx context.Context, f projects.Filter, basePath string) (*DownloadLink, error) {
	n, err := s.Projects.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("Failed to count projects: %w", err)
	}
	link := basePath
	if q := Query(f).Encode(); q != "" {
		link += "?" + q
	}
	return &DownloadLink{
		DownloadURL: link,
		RecordCount: n,
		Message:     fmt.Sprintf("%d件のプロジェクトデータをCSV形式でエクスポートします。", n),
	}, nil
}

// Query encodes the non-empty filters of f as URL query parameters.
func Query(f projects.Filter) url.Values {
	q := url.Values{}
	if f.ProjectCode != "" {
		q.Set("project_code", f.ProjectCode)
	}
	if f.ProjectName != "" {
		q.Set("project_name", f.ProjectName)
	}
	if f.BranchID != 0 {
		q.Set("branch_id", strconv.FormatUint(uint64(f.BranchID), 10))
	}
	if f.FiscalYear != 0 {
		q.Set("fiscal_year", strconv.Itoa(f.FiscalYear))
	}
	if f.MinProbability != nil {
		q.Set("order_probability_min", strconv.Itoa(*f.MinProbability))
	}
	if f.MaxProbability != nil {
		q.Set("order_probability_max", strconv.Itoa(*f.MaxProbability))
	}
	return q
}
