package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/domain/entity"
	domainwf "github.com/garyjia/fieldjob/internal/domain/workflow"
)

const (
	defaultSheet = "Invoice"
	headerRow    = 9
)

// Config holds invoice rendering configuration
type Config struct {
	TemplatePath string // optional workbook whose first sheet is filled
	CompanyName  string
	Currency     string
}

// ExcelRenderer writes one workbook per job visit
type ExcelRenderer struct {
	cfg    Config
	store  port.DocumentStore
	now    func() time.Time
	logger *zap.Logger
}

// NewExcelRenderer creates a renderer saving workbooks into store
func NewExcelRenderer(cfg Config, store port.DocumentStore, logger *zap.Logger) *ExcelRenderer {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &ExcelRenderer{cfg: cfg, store: store, now: time.Now, logger: logger}
}

// NameFor returns the document name of a job's invoice
func NameFor(jobID string) string {
	return "invoice-" + safeName(jobID) + ".xlsx"
}

// PathFor returns where the invoice of a job is written
func (r *ExcelRenderer) PathFor(jobID string) string {
	return r.store.Path(NameFor(jobID))
}

// Render writes the invoice with the base price, every ledger line and the
// grand total. Rendering again overwrites the previous file.
func (r *ExcelRenderer) Render(ctx context.Context, job entity.Job, state domainwf.State) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.logger.Info("Rendering invoice",
		zap.String("job_id", job.ID),
		zap.Int("lines", state.AdditionalItems.Len()))

	f, sheet, err := r.open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	r.setCell(f, sheet, "A1", r.cfg.CompanyName)
	r.setCell(f, sheet, "A2", "INVOICE")
	r.setCell(f, sheet, "A3", "Job")
	r.setCell(f, sheet, "B3", job.ID)
	r.setCell(f, sheet, "A4", "Customer")
	r.setCell(f, sheet, "B4", job.CustomerName)
	r.setCell(f, sheet, "A5", "Address")
	r.setCell(f, sheet, "B5", job.Address)
	r.setCell(f, sheet, "A6", "Date")
	r.setCell(f, sheet, "B6", r.now().Format(domainwf.DateLayout))
	r.setCell(f, sheet, "A7", "Time on site (min)")
	r.setCell(f, sheet, "B7", state.TimerSeconds/60)

	for col, title := range []string{"Description", "Kind", "Qty", "Unit price", "Amount"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		r.setCell(f, sheet, cell, title)
	}

	row := headerRow + 1
	r.writeLine(f, sheet, row, "Service visit", "base", 1, state.BasePrice)
	for _, item := range state.AdditionalItems {
		row++
		r.writeLine(f, sheet, row, item.Name, string(item.Kind), item.EffectiveQuantity(), item.UnitPrice)
	}

	row += 2
	r.setCell(f, sheet, fmt.Sprintf("D%d", row), "Total ("+r.cfg.Currency+")")
	r.setCell(f, sheet, fmt.Sprintf("E%d", row), state.ComputeTotal())

	if note := followupNote(state); note != "" {
		r.setCell(f, sheet, fmt.Sprintf("A%d", row+2), note)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}
	if err := r.store.Save(ctx, NameFor(job.ID), buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save invoice: %w", err)
	}

	path := r.PathFor(job.ID)

	r.logger.Info("Invoice saved",
		zap.String("job_id", job.ID),
		zap.String("path", path),
		zap.Float64("total", state.ComputeTotal()))
	return path, nil
}

func (r *ExcelRenderer) open() (*excelize.File, string, error) {
	if r.cfg.TemplatePath == "" {
		f := excelize.NewFile()
		if err := f.SetSheetName("Sheet1", defaultSheet); err != nil {
			_ = f.Close()
			return nil, "", fmt.Errorf("failed to prepare invoice sheet: %w", err)
		}
		return f, defaultSheet, nil
	}

	f, err := excelize.OpenFile(r.cfg.TemplatePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open template: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, "", fmt.Errorf("template has no sheets")
	}
	return f, sheets[0], nil
}

func (r *ExcelRenderer) writeLine(f *excelize.File, sheet string, row int, name, kind string, qty int, unit float64) {
	r.setCell(f, sheet, fmt.Sprintf("A%d", row), name)
	r.setCell(f, sheet, fmt.Sprintf("B%d", row), kind)
	r.setCell(f, sheet, fmt.Sprintf("C%d", row), qty)
	r.setCell(f, sheet, fmt.Sprintf("D%d", row), unit)
	r.setCell(f, sheet, fmt.Sprintf("E%d", row), unit*float64(qty))
}

// setCell sets a cell value, logging instead of failing the document
func (r *ExcelRenderer) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func followupNote(state domainwf.State) string {
	if state.Followup == nil {
		return ""
	}
	return fmt.Sprintf("Follow-up on %s %s: %s", state.Followup.Date, state.Followup.Time, state.Followup.Reason)
}

// safeName keeps job ids from escaping the store directory
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// Verify interface compliance
var _ port.InvoiceRenderer = (*ExcelRenderer)(nil)
