package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/handwriting-extractor/internal/entity"
	"github.com/joseph-ayodele/handwriting-extractor/internal/repository"
)

const SheetName = "Forms"

var fixedHeaders = []string{"ID", "Form Name", "Created At", "Updated At"}

// Service produces XLSX workbooks of stored forms.
type Service struct {
	forms  repository.FormRepository
	logger *slog.Logger
}

func NewService(forms repository.FormRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{forms: forms, logger: logger}
}

// ExportFormsXLSX writes every stored form as one row. Extracted fields become columns named
// by their flattened path, in order of first appearance.
func (s *Service) ExportFormsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	forms, err := s.forms.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	b, err := BuildWorkbook(forms)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(forms),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// BuildWorkbook renders forms into XLSX bytes.
func BuildWorkbook(forms []*entity.Form) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	type flat struct {
		keys   []string
		values map[string]any
	}
	rows := make([]flat, len(forms))
	column := map[string]int{}
	var dynamic []string
	for i, form := range forms {
		keys, values := FlattenJSON(form.Data)
		rows[i] = flat{keys: keys, values: values}
		for _, k := range keys {
			if _, ok := column[k]; !ok {
				column[k] = len(fixedHeaders) + len(dynamic) + 1
				dynamic = append(dynamic, k)
			}
		}
	}

	for i, h := range append(append([]string{}, fixedHeaders...), dynamic...) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, form := range forms {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		write(1, form.ID)
		write(2, form.FormName)
		write(3, form.CreatedAt.UTC().Format(time.RFC3339))
		write(4, form.UpdatedAt.UTC().Format(time.RFC3339))
		for _, k := range rows[i].keys {
			write(column[k], rows[i].values[k])
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 8)
	_ = f.SetColWidth(SheetName, "B", "B", 36)
	_ = f.SetColWidth(SheetName, "C", "D", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
