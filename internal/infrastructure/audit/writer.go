package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// Format selects the artifact encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Writer renders an audit batch into a file under dir and returns its path
type Writer interface {
	Write(dir string, batch integration.AuditBatch) (string, error)
}

// NewWriter returns the writer for format, defaulting to CSV
func NewWriter(format Format) Writer {
	if format == FormatXLSX {
		return XLSXWriter{}
	}
	return CSVWriter{}
}

// CSVWriter writes comma-separated artifacts
type CSVWriter struct{}

// Write implements Writer
func (CSVWriter) Write(dir string, batch integration.AuditBatch) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: create dir: %w", err)
	}
	path := filepath.Join(dir, FileName(batch, string(FormatCSV)))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("audit: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns(batch.Flow)); err != nil {
		return "", fmt.Errorf("audit: write header: %w", err)
	}
	for _, row := range batch.Rows {
		if err := w.Write(Values(batch.Flow, row)); err != nil {
			return "", fmt.Errorf("audit: write row %s: %w", row.SKU, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("audit: flush csv: %w", err)
	}
	return path, f.Close()
}

// XLSXWriter writes a single-sheet workbook
type XLSXWriter struct{}

const sheetName = "audit"

// Write implements Writer
func (XLSXWriter) Write(dir string, batch integration.AuditBatch) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: create dir: %w", err)
	}
	path := filepath.Join(dir, FileName(batch, string(FormatXLSX)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("audit: rename sheet: %w", err)
	}

	if err := setRow(f, 1, Columns(batch.Flow)); err != nil {
		return "", err
	}
	for i, row := range batch.Rows {
		if err := setRow(f, i+2, Values(batch.Flow, row)); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("audit: save xlsx: %w", err)
	}
	return path, nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("audit: cell name: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("audit: set row %d: %w", rowNum, err)
	}
	return nil
}
